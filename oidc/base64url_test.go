package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSegment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		seg       string
		want      []byte
		wantErrIs error
	}{
		{name: "no-padding-needed", seg: "YWJj", want: []byte("abc")},
		{name: "two-pad", seg: "YQ", want: []byte("a")},
		{name: "one-pad", seg: "YWI", want: []byte("ab")},
		{name: "url-alphabet", seg: "-_8", want: []byte{0xfb, 0xff}},
		{name: "empty", seg: "", want: []byte{}},
		{name: "remainder-one", seg: "YWJjZ", wantErrIs: ErrMalformedToken},
		{name: "invalid-chars", seg: "ab$d", wantErrIs: ErrMalformedToken},
		{name: "std-padding-chars", seg: "YQ==", want: []byte("a")},
		{name: "std-alphabet-plus", seg: "ab+d", wantErrIs: ErrMalformedToken},
		{name: "std-alphabet-slash", seg: "ab/d", wantErrIs: ErrMalformedToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := DecodeSegment(tt.seg)
			if tt.wantErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				assert.Nil(got)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestEncodeSegment(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	assert.Equal("-_8", EncodeSegment([]byte{0xfb, 0xff}))
	assert.Equal("YQ", EncodeSegment([]byte("a")))
	assert.NotContains(EncodeSegment([]byte("any carnal pleasure.")), "=")

	for _, in := range [][]byte{
		{},
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte(`{"nonce":"n1","oid":"00000000-0000-0000-66f3-3332eca7ea81"}`),
		{0x00, 0xfb, 0xff, 0xfe, 0x3e, 0x3f},
	} {
		got, err := DecodeSegment(EncodeSegment(in))
		require.NoError(err)
		assert.Equal(in, got)
	}
}
