package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"reqdash/internal/service"
)

const (
	// OAuth callback timeout
	oauthCallbackTimeout = 5 * time.Minute

	// Token exchange timeout
	tokenExchangeTimeout = 30 * time.Second

	// Starting port for OAuth callback server
	oauthStartPort = 8085

	// Max port attempts
	oauthMaxPortAttempts = 5
)

// SignInWithBrowser implements service.BrowserSignIn with the OAuth
// loopback flow and PKCE. Instructions go to w.
func (c *Client) SignInWithBrowser(ctx context.Context, w io.Writer) (service.Session, error) {
	if !c.cfg.HasOAuthClient() {
		writeOAuthClientHelp(w, c.cfg.Dir)
		return service.Session{}, service.AuthError(fmt.Sprintf("oauth_client.json not found in %s", c.cfg.Dir))
	}
	oauthConfig, err := c.oauthConfig()
	if err != nil {
		return service.Session{}, err
	}

	state := uuid.NewString()
	cb, err := startCallbackServer(state)
	if err != nil {
		return service.Session{}, service.AuthError("could not bind to local port for OAuth callback")
	}
	defer cb.close()

	oauthConfig.RedirectURL = cb.redirectURL()
	verifier := oauth2.GenerateVerifier()
	authURL := oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	fmt.Fprintln(w, "Open this URL in your browser:")
	fmt.Fprintln(w, authURL)

	waitCtx, cancelWait := context.WithTimeout(ctx, oauthCallbackTimeout)
	defer cancelWait()
	code, err := cb.wait(waitCtx)
	if err != nil {
		return service.Session{}, err
	}

	exchangeCtx, cancelExchange := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancelExchange()
	token, err := oauthConfig.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return service.Session{}, &service.Error{Kind: service.KindAuth, Message: "failed to exchange code for token", Err: err}
	}

	if err := c.cfg.EnsureDir(); err != nil {
		return service.Session{}, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := saveToken(c.cfg.TokenPath(), token); err != nil {
		return service.Session{}, fmt.Errorf("failed to save token: %w", err)
	}

	c.reset()
	sess, err := c.Session(ctx)
	if err != nil {
		return service.Session{}, err
	}
	c.notify(service.SessionEvent{Kind: service.EventSignedIn, Session: &sess})
	return sess, nil
}

func writeOAuthClientHelp(w io.Writer, dir string) {
	fmt.Fprintf(w, "oauth_client.json not found in %s\n\n", dir)
	fmt.Fprintln(w, "To use the Google Tasks backend, you need OAuth credentials:")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "1. Go to https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(w, "2. Create a project (or select an existing one)")
	fmt.Fprintln(w, "3. Enable the Google Tasks API:")
	fmt.Fprintln(w, "   https://console.cloud.google.com/apis/library/tasks.googleapis.com")
	fmt.Fprintln(w, "4. Create OAuth 2.0 credentials:")
	fmt.Fprintln(w, "   - Click 'Create Credentials' > 'OAuth client ID'")
	fmt.Fprintln(w, "   - Choose 'Desktop app' as application type")
	fmt.Fprintln(w, "   - Download the JSON file")
	fmt.Fprintln(w, "5. Save it as:")
	fmt.Fprintf(w, "   %s/oauth_client.json\n", dir)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Then run 'reqdash login' again.")
}

// callbackServer receives the authorization code on a loopback port.
type callbackServer struct {
	port   int
	state  string
	server *http.Server
	codeCh chan string
	errCh  chan error
}

func startCallbackServer(state string) (*callbackServer, error) {
	port, listener, err := findAvailablePort()
	if err != nil {
		return nil, err
	}
	cb := &callbackServer{
		port:   port,
		state:  state,
		codeCh: make(chan string, 1),
		errCh:  make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", cb.handle)
	cb.server = &http.Server{Handler: mux}
	go func() {
		if err := cb.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			cb.fail(err)
		}
	}()
	return cb, nil
}

func (cb *callbackServer) redirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", cb.port)
}

func (cb *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		http.Error(w, "Authorization denied", http.StatusBadRequest)
		cb.fail(fmt.Errorf("authorization denied: %s", e))
		return
	}
	if q.Get("state") != cb.state {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		cb.fail(fmt.Errorf("state mismatch in callback"))
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "No code in callback", http.StatusBadRequest)
		cb.fail(fmt.Errorf("no code in callback"))
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
	select {
	case cb.codeCh <- code:
	default:
	}
}

func (cb *callbackServer) fail(err error) {
	select {
	case cb.errCh <- err:
	default:
	}
}

// wait blocks until the browser delivers a code, the callback fails, or
// ctx is done.
func (cb *callbackServer) wait(ctx context.Context) (string, error) {
	select {
	case code := <-cb.codeCh:
		return code, nil
	case err := <-cb.errCh:
		return "", service.AuthError(err.Error())
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", service.AuthError("oauth callback timed out")
		}
		return "", service.AuthError("cancelled")
	}
}

func (cb *callbackServer) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = cb.server.Shutdown(shutdownCtx)
}

// findAvailablePort tries to find an available port starting from oauthStartPort.
func findAvailablePort() (int, net.Listener, error) {
	for i := 0; i < oauthMaxPortAttempts; i++ {
		port := oauthStartPort + i
		addr := fmt.Sprintf("localhost:%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return port, listener, nil
		}
	}
	return 0, nil, fmt.Errorf("no available port found")
}

// saveToken saves an OAuth token to a file with mode 0600.
func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
