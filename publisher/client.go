package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"
	"time"

	"github.com/postpilot/postpilot/core/config"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// IClient is the narrow contract the scheduler engine publishes through.
type IClient interface {
	PublishText(ctx context.Context, message, link string) (string, error)
	PublishImage(ctx context.Context, message, altText string, image []byte) (string, error)
	VerifyCredentials(ctx context.Context) error
}

// GraphClient posts to a Facebook page through the Graph API.
type GraphClient struct {
	baseURL     string
	pageID      string
	accessToken string
	timeout     time.Duration
	http        *fasthttp.Client
}

func NewGraphClient(cfg config.FacebookConfig) *GraphClient {
	return &GraphClient{
		baseURL:     cfg.BaseURL,
		pageID:      cfg.PageID,
		accessToken: cfg.AccessToken,
		timeout:     cfg.RequestTimeout,
		http:        &fasthttp.Client{},
	}
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

type graphResponse struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	Error  *graphError `json:"error"`
}

func (c *GraphClient) PublishText(ctx context.Context, message, link string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	if link != "" {
		form.Set("link", link)
	}
	form.Set("access_token", c.accessToken)

	endpoint := fmt.Sprintf("%s/%s/feed", c.baseURL, c.pageID)
	return c.post(ctx, endpoint, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

func (c *GraphClient) PublishImage(ctx context.Context, message, altText string, image []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("message", message)
	if altText != "" {
		_ = writer.WriteField("alt_text_custom", altText)
	}
	_ = writer.WriteField("access_token", c.accessToken)
	part, err := writer.CreateFormFile("source", "image")
	if err != nil {
		return "", transientErr("build multipart body: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", transientErr("write multipart body: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", transientErr("close multipart body: %v", err)
	}

	endpoint := fmt.Sprintf("%s/%s/photos", c.baseURL, c.pageID)
	return c.post(ctx, endpoint, writer.FormDataContentType(), body.Bytes())
}

// VerifyCredentials checks that the access token is still usable. The
// engine calls this before spending a retry on a post that failed with an
// expired-token error.
func (c *GraphClient) VerifyCredentials(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/me?fields=id,name&access_token=%s", c.baseURL, url.QueryEscape(c.accessToken))

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.http.DoTimeout(req, resp, c.deadlineTimeout(ctx)); err != nil {
		return transientErr("credential check failed: %v", err)
	}
	_, err := parseGraphResponse(resp)
	return err
}

func (c *GraphClient) post(ctx context.Context, endpoint, contentType string, body []byte) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.SetBody(body)

	if err := c.http.DoTimeout(req, resp, c.deadlineTimeout(ctx)); err != nil {
		// fasthttp timeouts and connection errors are all retryable.
		return "", transientErr("request failed: %v", err)
	}

	id, err := parseGraphResponse(resp)
	if err != nil {
		logrus.WithError(err).Warnf("[PUBLISHER] Graph API call to %s failed", endpoint)
		return "", err
	}
	return id, nil
}

// deadlineTimeout honors the caller's context deadline while keeping the
// configured per-request timeout as the upper bound.
func (c *GraphClient) deadlineTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}

func parseGraphResponse(resp *fasthttp.Response) (string, error) {
	status := resp.StatusCode()
	var parsed graphResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		if status >= 500 {
			return "", transientErr("server error %d", status)
		}
		return "", &PublishError{Kind: KindPermanent, Message: fmt.Sprintf("unparseable response (status %d)", status)}
	}

	if parsed.Error != nil {
		return "", classifyGraphError(parsed.Error.Code, parsed.Error.Message, retryAfterHeader(resp))
	}
	if status >= 500 {
		return "", transientErr("server error %d", status)
	}
	if status >= 400 {
		return "", &PublishError{Kind: KindPermanent, Message: fmt.Sprintf("unexpected status %d", status)}
	}

	// Photo uploads answer with both the photo id and the page post id;
	// the post id is the one dashboards link to.
	if parsed.PostID != "" {
		return parsed.PostID, nil
	}
	if parsed.ID == "" {
		return "", &PublishError{Kind: KindPermanent, Message: "response missing post id"}
	}
	return parsed.ID, nil
}

func retryAfterHeader(resp *fasthttp.Response) time.Duration {
	v := string(resp.Header.Peek(fasthttp.HeaderRetryAfter))
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
