package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FrameNetBrasil/daisy/internal/util"
	"github.com/FrameNetBrasil/daisy/pkg/common"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
)

var ErrEmptyResponse = errors.New("parser returned an empty document")

// Parser turns a sentence into dependency-parsed tokens.
type Parser interface {
	Parse(ctx context.Context, sentence string, language int) ([]common.ParsedToken, error)
}

// HTTPParser talks to a UDPipe-style service that answers with a CoNLL-U
// document in the "result" field.
type HTTPParser struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

type NewHTTPParserParams struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Client     *http.Client
}

func NewHTTPParser(params NewHTTPParserParams) *HTTPParser {
	client := params.Client
	if client == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &HTTPParser{
		url:        params.URL,
		client:     client,
		maxRetries: maxRetries,
		backoff:    params.Backoff,
	}
}

type parseRequest struct {
	Data     string `json:"data"`
	Language int    `json:"language"`
}

type parseResponse struct {
	Result string `json:"result"`
}

func (p *HTTPParser) Parse(ctx context.Context, sentence string, language int) ([]common.ParsedToken, error) {
	if strings.TrimSpace(sentence) == "" {
		return []common.ParsedToken{}, nil
	}

	body, err := json.Marshal(parseRequest{Data: sentence, Language: language})
	if err != nil {
		return nil, err
	}

	doc, err := util.RetryWithBackoff(ctx, p.maxRetries, p.backoff, func(ctx context.Context) (string, error) {
		return p.post(ctx, body)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse sentence: %w", err)
	}

	tokens, err := DecodeCoNLLU(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode parser output: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyResponse
	}
	logger.Debug("[Parser] Parsed sentence", "tokens", len(tokens), "language", language)
	return tokens, nil
}

func (p *HTTPParser) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		logger.Warn("[Parser] Request failed", "err", err)
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("parser responded %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out parseResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("invalid parser response: %w", err)
	}
	if strings.TrimSpace(out.Result) == "" {
		return "", ErrEmptyResponse
	}
	return out.Result, nil
}
