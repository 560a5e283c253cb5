// Package calendar is a small client for the Outlook REST calendar API. It
// attaches a bearer access token, per-request correlation headers and the
// user's anchor mailbox to every call, and maps the calendar view response
// into Events.
package calendar
