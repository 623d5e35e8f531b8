package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/snapvault/backend/internal/config"
)

// B2Service talks to a B2-compatible object storage backend. It holds a
// lazily refreshed account authorization and upload target; re-authorizing
// is idempotent, so a redundant refresh under concurrency is harmless.
type B2Service struct {
	cfg        *config.Config
	httpClient *http.Client

	mu     sync.Mutex
	auth   *b2Auth
	target *b2UploadTarget
}

type b2Auth struct {
	Token       string
	APIURL      string
	DownloadURL string
	ExpiresAt   time.Time
}

type b2UploadTarget struct {
	URL   string
	Token string
}

// StoredFile is a single object listed from the backend.
type StoredFile struct {
	FileID     string
	Key        string
	UploadedAt time.Time
}

func NewB2Service(cfg *config.Config) *B2Service {
	return &B2Service{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.StorageTimeout,
		},
	}
}

type b2AuthorizeResponse struct {
	AuthorizationToken string `json:"authorizationToken"`
	APIURL             string `json:"apiUrl"`
	DownloadURL        string `json:"downloadUrl"`
}

type b2UploadURLResponse struct {
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type b2UploadResponse struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

type b2ErrorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type b2ListResponse struct {
	Files []struct {
		FileID          string `json:"fileId"`
		FileName        string `json:"fileName"`
		UploadTimestamp int64  `json:"uploadTimestamp"`
	} `json:"files"`
	NextFileName *string `json:"nextFileName"`
}

// authorize obtains a fresh account authorization. Callers hold s.mu.
func (s *B2Service) authorize(ctx context.Context) (*b2Auth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.B2APIBase+"/b2api/v2/b2_authorize_account", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.cfg.B2KeyID, s.cfg.B2AppKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeB2Error(resp)
	}

	var out b2AuthorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return &b2Auth{
		Token:       out.AuthorizationToken,
		APIURL:      out.APIURL,
		DownloadURL: out.DownloadURL,
		ExpiresAt:   time.Now().Add(s.cfg.B2AuthTTL),
	}, nil
}

// currentAuth returns a valid account authorization, refreshing lazily.
func (s *B2Service) currentAuth(ctx context.Context) (*b2Auth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auth != nil && time.Now().Before(s.auth.ExpiresAt) {
		return s.auth, nil
	}

	auth, err := s.authorize(ctx)
	if err != nil {
		return nil, &StorageError{Op: "authorize", Err: err}
	}
	s.auth = auth
	s.target = nil
	return auth, nil
}

// invalidateAuth drops the cached authorization after a token rejection.
func (s *B2Service) invalidateAuth() {
	s.mu.Lock()
	s.auth = nil
	s.target = nil
	s.mu.Unlock()
}

// uploadTarget returns a valid upload URL + token pair, acquiring one if absent.
func (s *B2Service) uploadTarget(ctx context.Context) (*b2UploadTarget, error) {
	auth, err := s.currentAuth(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target != nil {
		return s.target, nil
	}

	var out b2UploadURLResponse
	err = s.callAPI(ctx, auth, "b2_get_upload_url", map[string]interface{}{"bucketId": s.cfg.B2BucketID}, &out)
	if err != nil {
		return nil, &StorageError{Op: "get_upload_url", Err: err}
	}

	s.target = &b2UploadTarget{URL: out.UploadURL, Token: out.AuthorizationToken}
	return s.target, nil
}

// callAPI issues a JSON POST against the account API endpoint.
func (s *B2Service) callAPI(ctx context.Context, auth *b2Auth, op string, body map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.APIURL+"/b2api/v2/"+op, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", auth.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeB2Error(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Upload stores data under key and returns the backend file id and the
// public delivery URL. An expired upload token is refreshed and the upload
// retried once; any other failure surfaces as a StorageError.
func (s *B2Service) Upload(ctx context.Context, key string, data []byte, contentType string) (string, string, error) {
	fileID, err := s.uploadOnce(ctx, key, data, contentType)
	if isExpiredToken(err) {
		s.invalidateAuth()
		fileID, err = s.uploadOnce(ctx, key, data, contentType)
	}
	if err != nil {
		return "", "", &StorageError{Op: "upload", Err: err}
	}

	deliveryURL, err := s.DeliveryURL(ctx, key)
	if err != nil {
		return "", "", err
	}
	return fileID, deliveryURL, nil
}

func (s *B2Service) uploadOnce(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	target, err := s.uploadTarget(ctx)
	if err != nil {
		return "", err
	}

	sum := sha1.Sum(data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", target.Token)
	req.Header.Set("X-Bz-File-Name", encodeFileName(key))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Bz-Content-Sha1", hex.EncodeToString(sum[:]))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeB2Error(resp)
	}

	var out b2UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.FileID, nil
}

// Delete removes a stored object by file id and key. Best-effort: failures
// are logged and reported as false so metadata deletion can proceed.
func (s *B2Service) Delete(ctx context.Context, fileID, key string) bool {
	if fileID == "" {
		return false
	}

	auth, err := s.currentAuth(ctx)
	if err != nil {
		log.Printf("WARN: storage delete of %s skipped: %v", key, err)
		return false
	}

	err = s.callAPI(ctx, auth, "b2_delete_file_version", map[string]interface{}{
		"fileId":   fileID,
		"fileName": key,
	}, nil)
	if isExpiredToken(err) {
		s.invalidateAuth()
		if auth, aerr := s.currentAuth(ctx); aerr == nil {
			err = s.callAPI(ctx, auth, "b2_delete_file_version", map[string]interface{}{
				"fileId":   fileID,
				"fileName": key,
			}, nil)
		}
	}
	if err != nil {
		log.Printf("WARN: storage delete of %s failed: %v", key, err)
		return false
	}
	return true
}

// ListKeys lists stored objects under prefix, paging through the backend.
func (s *B2Service) ListKeys(ctx context.Context, prefix string, max int) ([]StoredFile, error) {
	auth, err := s.currentAuth(ctx)
	if err != nil {
		return nil, err
	}

	files := []StoredFile{}
	var start *string
	for {
		body := map[string]interface{}{
			"bucketId":     s.cfg.B2BucketID,
			"prefix":       prefix,
			"maxFileCount": 1000,
		}
		if start != nil {
			body["startFileName"] = *start
		}

		var out b2ListResponse
		if err := s.callAPI(ctx, auth, "b2_list_file_names", body, &out); err != nil {
			return nil, &StorageError{Op: "list_file_names", Err: err}
		}

		for _, f := range out.Files {
			files = append(files, StoredFile{
				FileID:     f.FileID,
				Key:        f.FileName,
				UploadedAt: time.UnixMilli(f.UploadTimestamp),
			})
			if max > 0 && len(files) >= max {
				return files, nil
			}
		}

		if out.NextFileName == nil {
			break
		}
		start = out.NextFileName
	}
	return files, nil
}

// DeliveryURL builds the public URL for a key: the CDN base when configured,
// otherwise the backend's native download URL.
func (s *B2Service) DeliveryURL(ctx context.Context, key string) (string, error) {
	if s.cfg.CDNBaseURL != "" {
		return strings.TrimRight(s.cfg.CDNBaseURL, "/") + "/" + encodeFileName(key), nil
	}
	auth, err := s.currentAuth(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/file/%s/%s", auth.DownloadURL, s.cfg.B2BucketName, encodeFileName(key)), nil
}

// encodeFileName percent-encodes a key per B2 rules: segments escaped, slashes kept.
func encodeFileName(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func decodeB2Error(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var b2err b2ErrorResponse
	if json.Unmarshal(body, &b2err) == nil && b2err.Code != "" {
		return fmt.Errorf("%s (%d): %s", b2err.Code, resp.StatusCode, b2err.Message)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}

func isExpiredToken(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "expired_auth_token") || strings.Contains(msg, "bad_auth_token")
}
