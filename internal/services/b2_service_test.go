package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeB2 is an httptest-backed stand-in for a B2-compatible backend.
type fakeB2 struct {
	mu             sync.Mutex
	server         *httptest.Server
	authCalls      int
	uploadCalls    int
	expireNextN    int
	uploadedName   string
	uploadedSha1   string
	uploadedCType  string
	uploadedBody   []byte
	deletedFileIDs []string
}

func newFakeB2(t *testing.T) *fakeB2 {
	t.Helper()

	f := &fakeB2{}
	mux := http.NewServeMux()

	mux.HandleFunc("/b2api/v2/b2_authorize_account", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key-id" || pass != "app-key" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 401, "code": "unauthorized", "message": "bad credentials"})
			return
		}
		f.mu.Lock()
		f.authCalls++
		token := fmt.Sprintf("auth-token-%d", f.authCalls)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"authorizationToken": token,
			"apiUrl":             f.server.URL,
			"downloadUrl":        f.server.URL + "/dl",
		})
	})

	mux.HandleFunc("/b2api/v2/b2_get_upload_url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl":          f.server.URL + "/upload",
			"authorizationToken": "upload-token",
		})
	})

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.uploadCalls++
		expire := f.expireNextN > 0
		if expire {
			f.expireNextN--
		}
		f.mu.Unlock()
		if expire {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 401, "code": "expired_auth_token", "message": "token expired"})
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploadedName = r.Header.Get("X-Bz-File-Name")
		f.uploadedSha1 = r.Header.Get("X-Bz-Content-Sha1")
		f.uploadedCType = r.Header.Get("Content-Type")
		f.uploadedBody = body
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"fileId":   "4_z_file_id",
			"fileName": r.Header.Get("X-Bz-File-Name"),
		})
	})

	mux.HandleFunc("/b2api/v2/b2_delete_file_version", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileID string `json:"fileId"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.deletedFileIDs = append(f.deletedFileIDs, req.FileID)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{})
	})

	mux.HandleFunc("/b2api/v2/b2_list_file_names", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StartFileName string `json:"startFileName"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.StartFileName == "" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"files": []map[string]interface{}{
					{"fileId": "id-1", "fileName": "images/one.png", "uploadTimestamp": time.Now().UnixMilli()},
				},
				"nextFileName": "images/two.png",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]interface{}{
				{"fileId": "id-2", "fileName": "images/two.png", "uploadTimestamp": time.Now().UnixMilli()},
			},
			"nextFileName": nil,
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newB2Fixture(t *testing.T) (*B2Service, *fakeB2) {
	t.Helper()

	backend := newFakeB2(t)
	cfg := newTestConfig()
	cfg.B2APIBase = backend.server.URL
	cfg.B2KeyID = "key-id"
	cfg.B2AppKey = "app-key"
	cfg.B2BucketID = "bucket-id"
	cfg.B2BucketName = "snapvault-images"
	cfg.B2AuthTTL = time.Hour
	return NewB2Service(cfg), backend
}

func TestB2UploadSendsIntegrityHeaders(t *testing.T) {
	svc, backend := newB2Fixture(t)

	data := []byte("png bytes here")
	fileID, url, err := svc.Upload(context.Background(), "images/a b.png", data, "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if fileID != "4_z_file_id" {
		t.Errorf("file id = %q", fileID)
	}
	if !strings.Contains(url, "/file/snapvault-images/images/a%20b.png") {
		t.Errorf("delivery url = %q", url)
	}
	if backend.uploadedName != "images/a%20b.png" {
		t.Errorf("uploaded name = %q", backend.uploadedName)
	}
	sum := sha1.Sum(data)
	if backend.uploadedSha1 != hex.EncodeToString(sum[:]) {
		t.Errorf("sha1 header = %q", backend.uploadedSha1)
	}
	if backend.uploadedCType != "image/png" {
		t.Errorf("content type = %q", backend.uploadedCType)
	}
	if string(backend.uploadedBody) != string(data) {
		t.Errorf("body mismatch")
	}
}

func TestB2UploadRetriesOnceOnExpiredToken(t *testing.T) {
	svc, backend := newB2Fixture(t)
	backend.expireNextN = 1

	_, _, err := svc.Upload(context.Background(), "images/b.png", []byte("data"), "image/png")
	if err != nil {
		t.Fatalf("upload should succeed after re-auth: %v", err)
	}
	if backend.uploadCalls != 2 {
		t.Errorf("upload calls = %d, want 2", backend.uploadCalls)
	}
	if backend.authCalls != 2 {
		t.Errorf("auth calls = %d, want 2 (initial + refresh)", backend.authCalls)
	}
}

func TestB2UploadFailsAfterSecondTokenRejection(t *testing.T) {
	svc, backend := newB2Fixture(t)
	backend.expireNextN = 2

	_, _, err := svc.Upload(context.Background(), "images/c.png", []byte("data"), "image/png")
	if err == nil {
		t.Fatal("expected error after two token rejections")
	}
	var sErr *StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StorageError, got %T: %v", err, err)
	}
	if backend.uploadCalls != 2 {
		t.Errorf("upload calls = %d, want exactly 2 (no retry loop)", backend.uploadCalls)
	}
}

func TestB2AuthIsReusedAcrossCalls(t *testing.T) {
	svc, backend := newB2Fixture(t)

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Upload(context.Background(), fmt.Sprintf("images/r%d.png", i), []byte("x"), "image/png"); err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}
	if backend.authCalls != 1 {
		t.Errorf("auth calls = %d, want 1 cached authorization", backend.authCalls)
	}
}

func TestB2DeleteSkipsWithoutFileID(t *testing.T) {
	svc, backend := newB2Fixture(t)

	if ok := svc.Delete(context.Background(), "", "images/x.png"); ok {
		t.Error("delete without file id should report false")
	}
	if len(backend.deletedFileIDs) != 0 {
		t.Error("backend delete was called without a file id")
	}

	if ok := svc.Delete(context.Background(), "id-9", "images/x.png"); !ok {
		t.Error("delete with file id should succeed")
	}
	if len(backend.deletedFileIDs) != 1 || backend.deletedFileIDs[0] != "id-9" {
		t.Errorf("deleted file ids = %v", backend.deletedFileIDs)
	}
}

func TestB2ListKeysPagesThroughResults(t *testing.T) {
	svc, _ := newB2Fixture(t)

	files, err := svc.ListKeys(context.Background(), "images/", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2 across pages", len(files))
	}
	if files[0].Key != "images/one.png" || files[1].Key != "images/two.png" {
		t.Errorf("unexpected keys: %v, %v", files[0].Key, files[1].Key)
	}
}

func TestB2DeliveryURLPrefersCDN(t *testing.T) {
	svc, _ := newB2Fixture(t)
	svc.cfg.CDNBaseURL = "https://cdn.snapvault.io/"

	url, err := svc.DeliveryURL(context.Background(), "images/d.png")
	if err != nil {
		t.Fatalf("delivery url: %v", err)
	}
	if url != "https://cdn.snapvault.io/images/d.png" {
		t.Errorf("url = %q", url)
	}
}
