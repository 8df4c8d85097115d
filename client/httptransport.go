package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/foomo/formpersist/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	httpTransport struct {
		client   *http.Client
		endpoint string
	}
	HTTPTransportOption func(*httpTransport)

	reply struct {
		Reply jsoniter.RawMessage `json:"reply"`
	}
)

// NewHTTPTransport will create a new http transport for the given server.
// Caution: the provided server url is not validated!
func NewHTTPTransport(server string, opts ...HTTPTransportOption) transport {
	inst := &httpTransport{
		endpoint: server,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

func HTTPTransportWithHTTPClient(v *http.Client) HTTPTransportOption {
	return func(o *httpTransport) {
		o.client = v
	}
}

func (ht *httpTransport) shutdown() {
	ht.client.CloseIdleConnections()
}

func (ht *httpTransport) call(ctx context.Context, method, path string, request, response interface{}) error {
	var body io.Reader
	if request != nil {
		requestBytes, err := json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		body = bytes.NewReader(requestBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, ht.endpoint+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResponse, err := ht.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer httpResponse.Body.Close()

	responseBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	r := reply{}
	if err := json.Unmarshal(responseBytes, &r); err != nil {
		return errors.Errorf("non json reply: %d", httpResponse.StatusCode)
	}

	if httpResponse.StatusCode != http.StatusOK {
		serverErr := &responses.Error{}
		if err := json.Unmarshal(r.Reply, serverErr); err != nil || serverErr.Code == 0 {
			return errors.Errorf("non 200 reply: %d", httpResponse.StatusCode)
		}
		return serverErr
	}

	return errors.Wrap(json.Unmarshal(r.Reply, response), "failed to unmarshal reply")
}
