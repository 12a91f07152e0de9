package httpx

import "net/http"

// Client is satisfied by *http.Client and by the fasthttp-backed client, and
// is what the openai SDK accepts as its transport.
//
//go:generate mockery --name=Client --dir=. --output=./mocks --filename=http_client_mock.go --case=underscore
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}
