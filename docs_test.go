package calview_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/calview/calendar"
	"github.com/hashicorp/calview/oidc"
	"github.com/hashicorp/calview/tokencache"
)

func Example_calview() {
	ctx := context.Background()

	// Tokens are cached per user, here in a JSON document under the XDG data
	// home.
	cache, err := tokencache.NewFileCache(tokencache.DefaultPath("your-app"))
	if err != nil {
		// handle error
	}

	// Create a new Config and Provider
	pc, err := oidc.NewConfig(
		"https://login.microsoftonline.com/common",
		"your_client_id",
		"your_client_secret",
		oidc.WithScopes("https://outlook.office.com/calendars.read"),
	)
	if err != nil {
		// handle error
	}
	p, err := oidc.NewProvider(pc, cache)
	if err != nil {
		// handle error
	}
	defer p.Done()

	// Create a State for the user's sign-in attempt and send the user to the
	// auth URL. The State must be kept until the callback is handled (see
	// callback.AuthCode), which exchanges the code and caches the tokens.
	s, err := oidc.NewState(10 * time.Minute)
	if err != nil {
		// handle error
	}
	authURL, err := p.AuthURL(nil, "https://your_app/callback", s.Id(), s.Nonce())
	if err != nil {
		// handle error
	}
	fmt.Println(authURL)

	// Later, get a valid access token for the signed in user. It's refreshed
	// when the cached one has expired.
	userId := "the user id from the callback's claims"
	token, err := p.AccessToken(ctx, userId, "https://your_app/callback")
	if errors.Is(err, oidc.ErrNotFound) {
		// send the user through sign-in again
	}

	// Read the user's calendar for the coming week
	client, err := calendar.NewClient()
	if err != nil {
		// handle error
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)
	events, err := client.CalendarView(ctx, token, "user@example.com", start, start.AddDate(0, 0, 7))
	if err != nil {
		// handle error
	}
	for _, e := range events {
		fmt.Println(e.Start, e.Subject, e.Organizer)
	}
}
