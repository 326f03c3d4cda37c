package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

const (
	apiVersion      = "5.131"
	wallGetEndpoint = "https://api.vk.com/method/wall.get"
)

// API envelope errors.
var (
	// ErrAPIError indicates the envelope carried an error field. The wall
	// of a public group is readable without a token, but the platform
	// still refuses some requests; the cascade treats this as a soft
	// failure and falls through.
	ErrAPIError = errors.New("wall API error")

	errUnexpectedEnvelope = errors.New("wall API returned unexpected response")
)

// APIStrategy calls the unauthenticated wall-listing endpoint of a public
// group and parses the typed JSON envelope. Highest-fidelity source:
// real post IDs, real dates, full attachment lists.
type APIStrategy struct {
	client  *Client
	ownerID int64
}

// NewAPIStrategy creates the strategy for the given wall owner. ownerID
// is negative for group walls.
func NewAPIStrategy(client *Client, ownerID int64) *APIStrategy {
	return &APIStrategy{client: client, ownerID: ownerID}
}

func (s *APIStrategy) Name() string { return "api" }

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type wallEnvelope struct {
	Response *struct {
		Count int       `json:"count"`
		Items []vk.Post `json:"items"`
	} `json:"response"`
	Error *apiError `json:"error"`
}

// FetchPosts requests count posts starting at offset and returns the
// envelope's items verbatim.
func (s *APIStrategy) FetchPosts(ctx context.Context, count, offset int) ([]vk.Post, error) {
	query := url.Values{}
	query.Set("owner_id", strconv.FormatInt(s.ownerID, 10))
	query.Set("count", strconv.Itoa(count))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("extended", "0")
	query.Set("v", apiVersion)

	body, err := s.client.Get(ctx, wallGetEndpoint+"?"+query.Encode(), jsonHeaders())
	if err != nil {
		return nil, fmt.Errorf("wall.get request: %w", err)
	}

	return parseWallResponse(body)
}

func parseWallResponse(body []byte) ([]vk.Post, error) {
	var envelope wallEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode wall.get response: %w", err)
	}

	if envelope.Error != nil {
		return nil, fmt.Errorf("%w: code %d: %s", ErrAPIError, envelope.Error.Code, envelope.Error.Message)
	}

	if envelope.Response == nil {
		return nil, errUnexpectedEnvelope
	}

	return envelope.Response.Items, nil
}
