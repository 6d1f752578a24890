package camnotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/httprunner/CamNotify/internal/feishusdk"
)

type fakeIMClient struct {
	uploadKey  string
	uploadErr  error
	messageID  string
	sendErr    error
	sendCalled bool

	gotToken string
	gotFile  string
	gotChat  string
	gotPost  feishusdk.Post
	gotIdem  string
}

func (f *fakeIMClient) UploadImage(ctx context.Context, token, fileName string, content []byte) (string, error) {
	f.gotToken = token
	f.gotFile = fileName
	return f.uploadKey, f.uploadErr
}

func (f *fakeIMClient) SendPost(ctx context.Context, token, chatID string, p feishusdk.Post, idempotencyKey string) (string, error) {
	f.sendCalled = true
	f.gotChat = chatID
	f.gotPost = p
	f.gotIdem = idempotencyKey
	return f.messageID, f.sendErr
}

func sampleArtifact() *ImageArtifact {
	return &ImageArtifact{
		Data:        []byte{0xff, 0xd8, 0xff, 0xd9},
		Format:      "jpeg",
		Width:       640,
		Height:      480,
		DeviceIndex: 1,
		CapturedAt:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

func newFakeUploader(client imClient) *FeishuUploader {
	return &FeishuUploader{client: client, host: "lab-pi", newID: func() string { return "idem-1" }}
}

func TestFeishuUploaderPostsImage(t *testing.T) {
	client := &fakeIMClient{uploadKey: "img_v2_abc", messageID: "om_123"}
	u := newFakeUploader(client)

	conf, err := u.Upload(context.Background(), sampleArtifact(), " oc_chat ", "t-token", "")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if conf.MessageID != "om_123" || conf.ImageKey != "img_v2_abc" {
		t.Fatalf("unexpected confirmation: %+v", conf)
	}
	if client.gotToken != "t-token" || client.gotChat != "oc_chat" || client.gotIdem != "idem-1" {
		t.Fatalf("unexpected request: token=%q chat=%q idem=%q", client.gotToken, client.gotChat, client.gotIdem)
	}
	if client.gotFile != "capture_1_20260304T050607Z.jpg" {
		t.Fatalf("unexpected file name %q", client.gotFile)
	}
	if client.gotPost.Title != DefaultTitle || client.gotPost.ImageKey != "img_v2_abc" {
		t.Fatalf("unexpected post: %+v", client.gotPost)
	}
	if len(client.gotPost.Lines) != 1 || !strings.Contains(client.gotPost.Lines[0], "device 1") ||
		!strings.Contains(client.gotPost.Lines[0], "lab-pi") {
		t.Fatalf("unexpected caption: %v", client.gotPost.Lines)
	}
}

func TestFeishuUploaderMissingMessageID(t *testing.T) {
	client := &fakeIMClient{uploadKey: "img_v2_abc"}
	_, err := newFakeUploader(client).Upload(context.Background(), sampleArtifact(), "oc_chat", "t-token", "x")
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
}

func TestFeishuUploaderRejectsEmptyInputs(t *testing.T) {
	u := newFakeUploader(&fakeIMClient{})
	ctx := context.Background()
	if _, err := u.Upload(ctx, sampleArtifact(), "", "t-token", ""); !errors.Is(err, ErrDestinationInvalid) {
		t.Fatalf("expected ErrDestinationInvalid, got %v", err)
	}
	if _, err := u.Upload(ctx, sampleArtifact(), "oc_chat", " ", ""); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
	if _, err := u.Upload(ctx, &ImageArtifact{}, "oc_chat", "t-token", ""); !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote for empty artifact, got %v", err)
	}
}

func TestFeishuUploaderErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		uploadErr error
		sendErr   error
		want      error
	}{
		{"token invalid", &feishusdk.APIError{Op: "upload image", Code: 99991663, Msg: "invalid token"}, nil, ErrAuthRejected},
		{"http 401", &feishusdk.APIError{Op: "upload image", HTTPStatus: 401}, nil, ErrAuthRejected},
		{"chat not found", nil, &feishusdk.APIError{Op: "send message", Code: 230002, Msg: "bot not in chat"}, ErrDestinationInvalid},
		{"network", &feishusdk.TransportError{Op: "upload image", Err: context.DeadlineExceeded}, nil, ErrTransportFailure},
		{"http 502", &feishusdk.APIError{Op: "upload image", HTTPStatus: 502}, nil, ErrTransportFailure},
		{"other code", nil, &feishusdk.APIError{Op: "send message", Code: 230020, Msg: "rate limited"}, ErrRemote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeIMClient{uploadKey: "img", uploadErr: tc.uploadErr, messageID: "om", sendErr: tc.sendErr}
			_, err := newFakeUploader(client).Upload(context.Background(), sampleArtifact(), "oc_chat", "t-token", "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.uploadErr != nil && client.sendCalled {
				t.Fatalf("send must not run after failed image upload")
			}
		})
	}
}

func TestRemoteErrorCarriesCode(t *testing.T) {
	err := classifyFeishuError("send message", &feishusdk.APIError{Code: 230020, Msg: "rate limited"})
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Code != 230020 {
		t.Fatalf("expected RemoteError with code, got %v", err)
	}
	if ErrorKind(err) != "remote_error" {
		t.Fatalf("unexpected kind %q", ErrorKind(err))
	}
}

func TestFeishuUploaderDefaultSDKTransportReachesServer(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/open-apis/im/v1/images":
			_, _ = w.Write([]byte(`{"code":0,"data":{"image_key":"img_e2e"}}`))
		case "/open-apis/im/v1/messages":
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode message payload: %v", err)
			}
			if payload["receive_id"] != "oc_chat" {
				t.Errorf("unexpected receive_id %q", payload["receive_id"])
			}
			_, _ = w.Write([]byte(`{"code":0,"data":{"message_id":"om_e2e"}}`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	// No app id or secret, as with an unconfigured environment.
	u := NewFeishuUploader(feishusdk.NewClient(feishusdk.Options{BaseURL: srv.URL}))
	if u.transport != "sdk" {
		t.Fatalf("expected sdk transport, got %q", u.transport)
	}
	conf, err := u.Upload(context.Background(), sampleArtifact(), "oc_chat", "t-token", "")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if conf.MessageID != "om_e2e" || conf.ImageKey != "img_e2e" {
		t.Fatalf("unexpected confirmation: %+v", conf)
	}
	if n := requests.Load(); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}
