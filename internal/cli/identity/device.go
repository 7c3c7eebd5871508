package identity

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// signInDevice runs the device authorization grant for hosts without a browser
func (p *Provider) signInDevice(ctx context.Context) (*oauth2.Token, error) {
	config, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	if config.Endpoint.DeviceAuthURL == "" {
		return nil, fmt.Errorf("issuer %s does not support device authorization", p.settings.Issuer)
	}

	ctx = p.clientContext(ctx)

	resp, err := config.DeviceAuth(ctx, p.audienceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	if resp.VerificationURIComplete != "" {
		fmt.Fprintf(p.out, "To sign in, visit:\n  %s\nand confirm the code %s\n", resp.VerificationURIComplete, resp.UserCode)
	} else {
		fmt.Fprintf(p.out, "To sign in, visit:\n  %s\nand enter the code %s\n", resp.VerificationURI, resp.UserCode)
	}

	token, err := config.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device sign-in failed: %w", err)
	}

	if err := p.verifyIDToken(ctx, token, ""); err != nil {
		return nil, err
	}

	return token, nil
}
