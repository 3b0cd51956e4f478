package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnvironment(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		cfg     config.StripeConfig
		wantErr error
	}{
		"live key in test": {cfg: config.StripeConfig{APIKey: "sk_live_abc", Secret: "whsec_x", Env: "test"}},
		"test key in live": {cfg: config.StripeConfig{APIKey: "rk_test_abc", Secret: "whsec_x", Env: "live"}},
		"missing secret":   {cfg: config.StripeConfig{APIKey: "sk_test_abc", Env: "test"}, wantErr: errSecretRequired},
		"missing key":      {cfg: config.StripeConfig{Secret: "whsec_x", Env: "test"}, wantErr: errAPIKeyRequired},
		"unknown env":      {cfg: config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_x", Env: "staging"}, wantErr: errInvalidStripeEnv},
		"prefix without _": {cfg: config.StripeConfig{APIKey: "sk_testabc", Secret: "whsec_x", Env: "test"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient(ctx, tc.cfg, nil)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "rk_live_abc", Secret: " whsec_x ", Env: "LIVE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "live", client.Environment())
	assert.Equal(t, "whsec_x", client.SigningSecret())
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	client := &Client{environment: "test", signingSecret: "whsec_test"}
	_, err := client.ConstructEvent([]byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	require.Error(t, err)
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	assert.Empty(t, c.Environment())
	assert.Empty(t, c.SigningSecret())
}
