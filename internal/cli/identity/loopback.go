package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const callbackPath = "/callback"

const callbackPage = `<!DOCTYPE html>
<html><head><title>cursos</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em">
<h2>%s</h2><p>You can close this window and return to the terminal.</p>
</body></html>`

type callbackResult struct {
	code string
	err  error
}

// signInBrowser runs the authorization code flow with PKCE. The issuer
// redirects back to a short-lived server on the loopback interface.
func (p *Provider) signInBrowser(ctx context.Context) (*oauth2.Token, error) {
	config, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.settings.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	redirectURL := fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)

	state, err := randomString(24)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           callbackRouter(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Debug().Err(err).Msg("Callback server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	// Redirect URL depends on the listener, so the shared config is copied
	flow := *config
	flow.RedirectURL = redirectURL

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if hasScope(flow.Scopes, "openid") {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}
	authURL := flow.AuthCodeURL(state, p.audienceOptions(opts...)...)

	p.logger.Debug().Str("redirect_url", redirectURL).Msg("Waiting for authorization callback")
	p.showURL(authURL)

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return nil, fmt.Errorf("login timed out waiting for the browser: %w", ctx.Err())
	}
	if result.err != nil {
		return nil, result.err
	}

	token, err := flow.Exchange(p.clientContext(ctx), result.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code for token: %w", err)
	}

	if err := p.verifyIDToken(ctx, token, nonce); err != nil {
		return nil, err
	}

	return token, nil
}

// callbackRouter handles the single redirect from the issuer
func callbackRouter(state string, results chan<- callbackResult) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(callbackPath, func(c *gin.Context) {
		result := readCallback(c, state)

		title := "Signed in"
		status := http.StatusOK
		if result.err != nil {
			title = "Sign-in failed"
			status = http.StatusBadRequest
		}
		c.Data(status, "text/html; charset=utf-8", []byte(fmt.Sprintf(callbackPage, title)))

		select {
		case results <- result:
		default:
		}
	})

	return router
}

func readCallback(c *gin.Context, state string) callbackResult {
	if errCode := c.Query("error"); errCode != "" {
		if desc := c.Query("error_description"); desc != "" {
			return callbackResult{err: fmt.Errorf("authorization failed: %s: %s", errCode, desc)}
		}
		return callbackResult{err: fmt.Errorf("authorization failed: %s", errCode)}
	}
	if c.Query("state") != state {
		return callbackResult{err: errors.New("authorization failed: state mismatch")}
	}
	code := c.Query("code")
	if code == "" {
		return callbackResult{err: errors.New("authorization failed: missing code")}
	}
	return callbackResult{code: code}
}
