package secrets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ymakhno/confbak/internal/config"
	"github.com/ymakhno/confbak/internal/secrets"
)

func TestStaticResolver_Resolve(t *testing.T) {
	r := secrets.NewStaticResolver("net/core-sw1=s3cret,net/edge-rt2=hunter2")

	password, err := r.Resolve(context.Background(), "net/core-sw1")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)

	password, err = r.Resolve(context.Background(), "net/edge-rt2")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)
}

func TestStaticResolver_UnknownRef(t *testing.T) {
	r := secrets.NewStaticResolver("net/core-sw1=s3cret")

	_, err := r.Resolve(context.Background(), "net/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "net/missing")
}

func TestStaticResolver_PasswordContainingEquals(t *testing.T) {
	// Only the first "=" separates ref from password.
	r := secrets.NewStaticResolver("net/sw1=pass=word")

	password, err := r.Resolve(context.Background(), "net/sw1")
	require.NoError(t, err)
	assert.Equal(t, "pass=word", password)
}

func TestStaticResolver_MalformedPairsIgnored(t *testing.T) {
	r := secrets.NewStaticResolver("garbage,=nopass,net/sw1=ok")

	password, err := r.Resolve(context.Background(), "net/sw1")
	require.NoError(t, err)
	assert.Equal(t, "ok", password)

	_, err = r.Resolve(context.Background(), "garbage")
	assert.Error(t, err)
}

func TestNewResolver_Static(t *testing.T) {
	r, err := secrets.NewResolver(context.Background(), config.SecretsConfig{
		Provider:      "static",
		StaticSecrets: "net/sw1=pw",
	})
	require.NoError(t, err)

	password, err := r.Resolve(context.Background(), "net/sw1")
	require.NoError(t, err)
	assert.Equal(t, "pw", password)
}

func TestNewResolver_UnknownProvider(t *testing.T) {
	_, err := secrets.NewResolver(context.Background(), config.SecretsConfig{Provider: "vault"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault")
}
