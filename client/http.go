package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/distributedlearning/go-task-client/task"
)

const (
	tokenEndpoint       = "/token/user"
	taskEndpoint        = "/task"
	taskStatusEndpoint  = "/task/%d"
	taskResultsEndpoint = "/task/%d?include=results"
)

// defaultClient is the default http.Client.
var defaultClient = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Config provides the client configuration.
type Config struct {
	// Host is the server address, e.g. https://server.example.com
	Host string

	// APIPath is the api prefix appended to the host.
	APIPath string

	// Username and Password are exchanged for a bearer token.
	Username string
	Password string

	// SkipVerify disables tls certificate verification.
	SkipVerify bool
}

// An HTTPClient manages communication with the task execution
// server. It is unauthenticated; Authenticate exchanges the
// configured credentials for a Session which performs all
// further requests.
type HTTPClient struct {
	Client *http.Client
	Logger *logrus.Logger
	Config Config
}

// New returns a new unauthenticated client.
func New(config Config) *HTTPClient {
	c := &HTTPClient{
		Client: defaultClient,
		Logger: logrus.StandardLogger(),
		Config: config,
	}
	if config.SkipVerify {
		c.Client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec
				},
			},
		}
	}
	return c
}

// Authenticate exchanges the configured username and password
// for a bearer token. It returns a Session that attaches the
// token to every subsequent request.
func (p *HTTPClient) Authenticate(ctx context.Context) (*Session, error) {
	req := &TokenRequest{
		Username: p.Config.Username,
		Password: p.Config.Password,
	}
	resp := &TokenResponse{}

	// the handshake runs through a session that does not
	// hold a token yet, so no Authorization header is sent.
	s := &Session{client: p}
	if _, err := s.doJson(ctx, tokenEndpoint, "POST", req, resp); err != nil { //nolint: bodyclose
		return nil, errors.Wrap(err, "could not authenticate")
	}
	if resp.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}
	s.token = resp.AccessToken
	s.refresh = resp.RefreshToken
	return s, nil
}

// A Session is an authenticated client. The zero value is not
// usable; obtain one from HTTPClient.Authenticate.
type Session struct {
	client *HTTPClient
	token  string

	// refresh is issued by the server alongside the access
	// token. The server invalidates it with the access token,
	// so it is kept for the lifetime of the session only.
	refresh string
}

// CreateTask submits a task for execution and returns the
// server representation, including the assigned identifier.
func (s *Session) CreateTask(ctx context.Context, t *task.Task) (*task.Status, error) {
	out := &task.Status{}
	if err := s.Post(ctx, taskEndpoint, t, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTask fetches the current status of a task.
func (s *Session) GetTask(ctx context.Context, id int) (*task.Status, error) {
	out := &task.Status{}
	if err := s.Get(ctx, fmt.Sprintf(taskStatusEndpoint, id), out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTaskResults fetches the status of a task with its results
// included.
func (s *Session) GetTaskResults(ctx context.Context, id int) (*task.Status, error) {
	out := &task.Status{}
	if err := s.Get(ctx, fmt.Sprintf(taskResultsEndpoint, id), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get sends an authenticated GET request to path, relative to
// the api base, and decodes the json response into out.
func (s *Session) Get(ctx context.Context, path string, out any) error {
	_, err := s.doJson(ctx, path, "GET", nil, out) //nolint: bodyclose
	return err
}

// Post sends an authenticated POST request to path, relative to
// the api base, with in encoded as the json request body and the
// json response decoded into out.
func (s *Session) Post(ctx context.Context, path string, in, out any) error {
	_, err := s.doJson(ctx, path, "POST", in, out) //nolint: bodyclose
	return err
}

func (s *Session) doJson(ctx context.Context, path, method string, in, out any) (*http.Response, error) {
	var buf = &bytes.Buffer{}
	// marshal the input payload into json format and copy
	// to an io.ReadCloser.
	if in != nil {
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			s.client.logger().WithError(err).Error("could not encode input payload")
		}
	}
	res, body, err := s.do(ctx, path, method, buf)
	if err != nil {
		return res, err
	}
	// a 204 response carries no body to decode.
	if out == nil || len(body) == 0 {
		return res, nil
	}
	if jsonErr := json.Unmarshal(body, out); jsonErr != nil {
		return res, jsonErr
	}
	return res, nil
}

// do is a helper function that sends an http request with the
// input encoded and response decoded from json.
func (s *Session) do(ctx context.Context, path, method string, in *bytes.Buffer) (*http.Response, []byte, error) {
	endpoint := s.client.Config.Host + s.client.Config.APIPath + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, in)
	if err != nil {
		return nil, nil, err
	}

	// the request should include the bearer token issued by
	// the token endpoint for authorization.
	if s.token != "" {
		req.Header.Add("Authorization", "Bearer "+s.token)
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept-Encoding", "gzip")

	res, err := s.client.Client.Do(req)
	if res != nil {
		defer func() {
			// drain the response body so we can reuse
			// this connection.
			if _, err := io.Copy(io.Discard, io.LimitReader(res.Body, 4096)); err != nil {
				s.client.logger().WithError(err).Error("could not drain response body")
			}
			res.Body.Close()
		}()
	}
	if err != nil {
		return res, nil, err
	}

	// if the response body returns no content we exit
	// immediately. We do not read or unmarshal the response
	// and we do not return an error.
	if res.StatusCode == 204 {
		return res, nil, nil
	}

	// result payloads can be large; the server compresses the
	// body when the request offers gzip.
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gz, gzErr := gzip.NewReader(res.Body)
		if gzErr != nil {
			return res, nil, gzErr
		}
		defer gz.Close()
		r = gz
	}

	// else read the response body into a byte slice.
	body, err := io.ReadAll(r)
	if err != nil {
		return res, nil, err
	}

	if res.StatusCode > 299 {
		// if the response body includes an error message
		// we should return the error string.
		if len(body) != 0 {
			return res, body, errors.New(
				string(body),
			)
		}
		// if the response body is empty we should return
		// the default status code text.
		return res, body, errors.New(
			http.StatusText(res.StatusCode),
		)
	}
	return res, body, nil
}

// logger is a helper function that returns the default logger
// if a custom logger is not defined.
func (p *HTTPClient) logger() *logrus.Logger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}
