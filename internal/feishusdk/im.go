package feishusdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

const (
	imageTypeMessage  = "message"
	receiveIDTypeChat = "chat_id"
	msgTypePost       = "post"
	postLocale        = "en_us"
)

// Post is a rich-text message with a title, one image and optional text lines.
type Post struct {
	Title    string
	ImageKey string
	Lines    []string
}

type postElement struct {
	Tag      string `json:"tag"`
	Text     string `json:"text,omitempty"`
	ImageKey string `json:"image_key,omitempty"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// Content renders the post as the JSON string the message API expects.
func (p Post) Content() (string, error) {
	rows := make([][]postElement, 0, len(p.Lines)+1)
	rows = append(rows, []postElement{{Tag: "img", ImageKey: p.ImageKey}})
	for _, line := range p.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, []postElement{{Tag: "text", Text: line}})
	}
	raw, err := json.Marshal(map[string]postBody{postLocale: {Title: p.Title, Content: rows}})
	if err != nil {
		return "", fmt.Errorf("feishu: marshal post content: %w", err)
	}
	return string(raw), nil
}

// UploadImage uploads image bytes for use in messages and returns the image_key.
func (c *Client) UploadImage(ctx context.Context, token, fileName string, content []byte) (string, error) {
	if c == nil {
		return "", fmt.Errorf("feishu: client is nil")
	}
	if len(content) == 0 {
		return "", fmt.Errorf("feishu: upload content is empty")
	}
	fileName = strings.TrimSpace(filepath.Base(fileName))
	if fileName == "" || fileName == "." {
		fileName = "capture.jpg"
	}
	if c.useHTTP() {
		return c.uploadImageHTTP(ctx, token, fileName, content)
	}

	body := larkim.NewCreateImageReqBodyBuilder().
		ImageType(imageTypeMessage).
		Image(bytes.NewReader(content)).
		Build()
	req := larkim.NewCreateImageReqBuilder().Body(body).Build()
	resp, err := c.imageAPI.Create(ctx, req, tokenOptions(token)...)
	if err != nil {
		return "", sdkError("upload image", err)
	}
	if resp == nil {
		return "", &TransportError{Op: "upload image", Err: fmt.Errorf("empty response")}
	}
	if !resp.Success() {
		return "", &APIError{Op: "upload image", HTTPStatus: statusOf(resp.ApiResp), Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.ImageKey == nil || strings.TrimSpace(*resp.Data.ImageKey) == "" {
		return "", &APIError{Op: "upload image", HTTPStatus: statusOf(resp.ApiResp), Msg: "response missing image_key"}
	}
	return strings.TrimSpace(*resp.Data.ImageKey), nil
}

// SendPost posts p to the chat and returns the message_id. An empty
// message_id is returned as-is; callers decide how to treat it.
func (c *Client) SendPost(ctx context.Context, token, chatID string, p Post, idempotencyKey string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("feishu: client is nil")
	}
	content, err := p.Content()
	if err != nil {
		return "", err
	}
	if c.useHTTP() {
		return c.sendPostHTTP(ctx, token, chatID, content, idempotencyKey)
	}

	bodyBuilder := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(chatID).
		MsgType(msgTypePost).
		Content(content)
	if strings.TrimSpace(idempotencyKey) != "" {
		bodyBuilder.Uuid(idempotencyKey)
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeChat).
		Body(bodyBuilder.Build()).
		Build()
	resp, err := c.messageAPI.Create(ctx, req, tokenOptions(token)...)
	if err != nil {
		return "", sdkError("send message", err)
	}
	if resp == nil {
		return "", &TransportError{Op: "send message", Err: fmt.Errorf("empty response")}
	}
	if !resp.Success() {
		return "", &APIError{Op: "send message", HTTPStatus: statusOf(resp.ApiResp), Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", nil
	}
	return strings.TrimSpace(*resp.Data.MessageId), nil
}

// sdkError maps an error returned by the SDK before any response was
// decoded. Parameter checks run before the request is built and are not
// transport failures.
func sdkError(op string, err error) error {
	var illegal *larkcore.IllegalParamError
	if errors.As(err, &illegal) {
		return &APIError{Op: op, Msg: illegal.Error()}
	}
	return &TransportError{Op: op, Err: err}
}

func statusOf(resp *larkcore.ApiResp) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

type openAPIEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) uploadImageHTTP(ctx context.Context, token, fileName string, content []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("image_type", imageTypeMessage)
	part, err := writer.CreateFormFile("image", fileName)
	if err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("feishu: create multipart image field: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("feishu: write multipart image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("feishu: finalize multipart payload: %w", err)
	}

	var data struct {
		ImageKey string `json:"image_key"`
	}
	if err := c.doOpenAPI(ctx, "upload image", token, "/open-apis/im/v1/images", writer.FormDataContentType(), &body, &data); err != nil {
		return "", err
	}
	if strings.TrimSpace(data.ImageKey) == "" {
		return "", &APIError{Op: "upload image", HTTPStatus: http.StatusOK, Msg: "response missing image_key"}
	}
	return strings.TrimSpace(data.ImageKey), nil
}

func (c *Client) sendPostHTTP(ctx context.Context, token, chatID, content, idempotencyKey string) (string, error) {
	payload := map[string]string{
		"receive_id": chatID,
		"msg_type":   msgTypePost,
		"content":    content,
	}
	if strings.TrimSpace(idempotencyKey) != "" {
		payload["uuid"] = idempotencyKey
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("feishu: marshal message payload: %w", err)
	}
	path := "/open-apis/im/v1/messages?receive_id_type=" + url.QueryEscape(receiveIDTypeChat)
	var data struct {
		MessageID string `json:"message_id"`
	}
	if err := c.doOpenAPI(ctx, "send message", token, path, "application/json; charset=utf-8", bytes.NewReader(raw), &data); err != nil {
		return "", err
	}
	return strings.TrimSpace(data.MessageID), nil
}

func (c *Client) doOpenAPI(ctx context.Context, op, token, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase()+path, body)
	if err != nil {
		return fmt.Errorf("feishu: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var envelope openAPIEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Op: op, HTTPStatus: resp.StatusCode, Msg: strings.TrimSpace(string(raw))}
		}
		return &APIError{Op: op, HTTPStatus: resp.StatusCode, Msg: fmt.Sprintf("decode response: %v", err)}
	}
	if envelope.Code != 0 || resp.StatusCode >= 400 {
		return &APIError{Op: op, HTTPStatus: resp.StatusCode, Code: envelope.Code, Msg: envelope.Msg}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &APIError{Op: op, HTTPStatus: resp.StatusCode, Msg: fmt.Sprintf("decode data: %v", err)}
		}
	}
	return nil
}
