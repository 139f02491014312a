package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicID(t *testing.T) {
	require.Equal(t, "survey-1/survey.zip", PublicID("survey-1/survey.zip"))
	require.Equal(t, "etc/sur-vey.zip", PublicID("../../etc/sur vey.zip"))
	require.Equal(t, "a-b/survey.zip", PublicID(" /a?b/survey.zip "))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
