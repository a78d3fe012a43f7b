package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	apperrors "docgen-workers/internal/common/errors"
	httpclient "docgen-workers/internal/common/http"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
)

// TokenSource hands out a bearer token valid for at least one request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type GraphConfig struct {
	BaseURL    string // e.g. https://graph.microsoft.com/v1.0
	RootFolder string
}

// GraphBackend stores files in the default OneDrive of the tenant's root site,
// below a single root folder.
type GraphBackend struct {
	baseURL    string
	rootFolder string
	tokens     TokenSource
	client     httpclient.Doer
	logger     logger.Logger

	mu        sync.Mutex
	derivedBy string // token the cached ids were resolved with
	driveID   string
	rootID    string
}

type driveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	WebURL               string `json:"webUrl"`
	Size                 int64  `json:"size"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	Folder               *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
}

type driveItemPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type newFolderRequest struct {
	Name             string   `json:"name"`
	Folder           struct{} `json:"folder"`
	ConflictBehavior string   `json:"@microsoft.graph.conflictBehavior"`
}

// graphCall carries the per-operation credentials and resolved ids.
type graphCall struct {
	token   string
	driveID string
	rootID  string
}

func NewGraphBackend(cfg GraphConfig, tokens TokenSource, client httpclient.Doer, log logger.Logger) *GraphBackend {
	root := cleanPath(cfg.RootFolder)
	if root == "" {
		root = "GeneratedDocuments"
	}
	return &GraphBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		rootFolder: root,
		tokens:     tokens,
		client:     client,
		logger:     log.WithFields(map[string]interface{}{"provider": "onedrive"}),
	}
}

func (g *GraphBackend) Provider() string { return "onedrive" }

// prepare obtains a token and the drive and root folder ids, resolving the ids
// again whenever the session hands out a different token.
func (g *GraphBackend) prepare(ctx context.Context) (*graphCall, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.derivedBy == token && g.driveID != "" && g.rootID != "" {
		call := &graphCall{token: token, driveID: g.driveID, rootID: g.rootID}
		g.mu.Unlock()
		return call, nil
	}
	g.mu.Unlock()

	call := &graphCall{token: token}
	if call.driveID, err = g.resolveDrive(ctx, call); err != nil {
		return nil, err
	}
	if call.rootID, err = g.ensureRootFolder(ctx, call); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.derivedBy, g.driveID, g.rootID = token, call.driveID, call.rootID
	g.mu.Unlock()

	g.logger.Debug("Resolved drive", map[string]interface{}{
		"driveId":      call.driveID,
		"rootFolderId": call.rootID,
	})
	return call, nil
}

func (g *GraphBackend) resolveDrive(ctx context.Context, call *graphCall) (string, error) {
	const op = "get drive"
	resp, err := g.do(ctx, call, op, http.MethodGet, g.baseURL+"/sites/root/drives", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewRemoteAPIError(op, resp.StatusCode, httpclient.ReadBody(resp))
	}

	var page struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return "", apperrors.NewRemoteTransportError(op, err)
	}
	if len(page.Value) == 0 || page.Value[0].ID == "" {
		return "", apperrors.NewRemoteAPIError(op, resp.StatusCode, "no drives found")
	}
	return page.Value[0].ID, nil
}

func (g *GraphBackend) ensureRootFolder(ctx context.Context, call *graphCall) (string, error) {
	const op = "get root folder"
	u := fmt.Sprintf("%s/drives/%s/root:/%s", g.baseURL, call.driveID, escapePath(g.rootFolder))
	item, status, err := g.getItem(ctx, call, op, u)
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return item.ID, nil
	}

	created, err := g.createChild(ctx, call, fmt.Sprintf("%s/drives/%s/root/children", g.baseURL, call.driveID), g.rootFolder)
	if err != nil {
		return "", err
	}
	g.logger.Info("Created root folder", map[string]interface{}{
		"folder": g.rootFolder,
		"id":     created.ID,
	})
	return created.ID, nil
}

// CreateFolder walks path one segment at a time, adopting existing folders
// and creating missing ones under their parent.
func (g *GraphBackend) CreateFolder(ctx context.Context, p string) (string, error) {
	call, err := g.prepare(ctx)
	if err != nil {
		return "", err
	}
	return g.createFolder(ctx, call, p)
}

func (g *GraphBackend) createFolder(ctx context.Context, call *graphCall, p string) (string, error) {
	segments, err := safeSegments(p)
	if err != nil {
		return "", err
	}

	const op = "check folder"
	parentID := call.rootID
	prefix := ""
	for _, segment := range segments {
		prefix = joinPath(prefix, segment)

		item, status, err := g.getItem(ctx, call, op, g.rootItemURL(call, prefix))
		if err != nil {
			return "", err
		}
		if status == http.StatusOK {
			parentID = item.ID
			continue
		}

		created, err := g.createChild(ctx, call, fmt.Sprintf("%s/drives/%s/items/%s/children", g.baseURL, call.driveID, parentID), segment)
		if err != nil {
			return "", err
		}
		g.logger.Debug("Created folder", map[string]interface{}{
			"path": prefix,
			"id":   created.ID,
		})
		parentID = created.ID
	}
	return parentID, nil
}

func (g *GraphBackend) UploadFile(ctx context.Context, localPath, destPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewNotFoundError("File", localPath)
		}
		return "", apperrors.NewInternalError("failed to open upload source", err)
	}
	defer f.Close()

	return g.UploadStream(ctx, f, destPath, DetectContentType(localPath))
}

func (g *GraphBackend) UploadStream(ctx context.Context, r io.Reader, destPath, contentType string) (string, error) {
	segments, err := safeSegments(destPath)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", apperrors.NewInvalidPathError(destPath)
	}
	fileName := segments[len(segments)-1]
	if contentType == "" {
		contentType = ContentTypeByName(fileName)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	call, err := g.prepare(ctx)
	if err != nil {
		return "", err
	}

	parentID, err := g.createFolder(ctx, call, strings.Join(segments[:len(segments)-1], "/"))
	if err != nil {
		return "", err
	}

	const op = "upload file"
	u := fmt.Sprintf("%s/drives/%s/items/%s:/%s:/content", g.baseURL, call.driveID, parentID, url.PathEscape(fileName))
	resp, err := g.do(ctx, call, op, http.MethodPut, u, r, contentType)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apperrors.NewRemoteAPIError(op, resp.StatusCode, httpclient.ReadBody(resp))
	}

	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return "", apperrors.NewRemoteTransportError(op, err)
	}

	g.logger.Info("Uploaded file", map[string]interface{}{
		"path": strings.Join(segments, "/"),
		"id":   item.ID,
	})
	return item.WebURL, nil
}

func (g *GraphBackend) DownloadFile(ctx context.Context, srcPath, localDest string) (string, error) {
	call, err := g.prepare(ctx)
	if err != nil {
		return "", err
	}
	u, err := g.checkedItemURL(call, srcPath)
	if err != nil {
		return "", err
	}

	const op = "download file"
	resp, err := g.do(ctx, call, op, http.MethodGet, u+":/content", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := remoteStatus(op, "File", srcPath, resp); err != nil {
		return "", err
	}

	if err := writeFile(localDest, resp.Body); err != nil {
		return "", apperrors.NewRemoteTransportError(op, err)
	}
	return localDest, nil
}

func (g *GraphBackend) FileURL(ctx context.Context, p string) (string, error) {
	call, err := g.prepare(ctx)
	if err != nil {
		return "", err
	}
	u, err := g.checkedItemURL(call, p)
	if err != nil {
		return "", err
	}

	const op = "get file url"
	resp, err := g.do(ctx, call, op, http.MethodGet, u, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := remoteStatus(op, "File", p, resp); err != nil {
		return "", err
	}
	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return "", apperrors.NewRemoteTransportError(op, err)
	}
	return item.WebURL, nil
}

func (g *GraphBackend) ListFiles(ctx context.Context, folder string) ([]models.StorageEntry, error) {
	call, err := g.prepare(ctx)
	if err != nil {
		return nil, err
	}
	base, err := g.checkedItemURL(call, folder)
	if err != nil {
		return nil, err
	}

	const op = "list files"
	prefix := cleanPath(folder)
	entries := []models.StorageEntry{}
	for next := base + ":/children"; next != ""; {
		resp, err := g.do(ctx, call, op, http.MethodGet, next, nil, "")
		if err != nil {
			return nil, err
		}
		if err := remoteStatus(op, "Folder", folder, resp); err != nil {
			resp.Body.Close()
			return nil, err
		}

		var page driveItemPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, apperrors.NewRemoteTransportError(op, err)
		}

		for _, item := range page.Value {
			entries = append(entries, toEntry(prefix, item))
		}
		next = page.NextLink
	}
	return entries, nil
}

func toEntry(folder string, item driveItem) models.StorageEntry {
	entry := models.StorageEntry{
		Name:     item.Name,
		Path:     joinPath(folder, item.Name),
		Type:     models.EntryTypeFile,
		Size:     item.Size,
		Modified: item.LastModifiedDateTime,
		ID:       item.ID,
		WebURL:   item.WebURL,
	}
	if item.Folder != nil {
		entry.Type = models.EntryTypeFolder
	}
	if item.File != nil {
		entry.ContentType = item.File.MimeType
	}
	return entry
}

func (g *GraphBackend) DeleteFile(ctx context.Context, p string) (bool, error) {
	call, err := g.prepare(ctx)
	if err != nil {
		return false, err
	}
	if cleanPath(p) == "" {
		return false, apperrors.NewInvalidPathError(p)
	}
	u, err := g.checkedItemURL(call, p)
	if err != nil {
		return false, err
	}

	const op = "delete file"
	resp, err := g.do(ctx, call, op, http.MethodDelete, u, nil, "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		g.logger.Info("Deleted item", map[string]interface{}{"path": cleanPath(p)})
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, apperrors.NewRemoteAPIError(op, resp.StatusCode, httpclient.ReadBody(resp))
	}
}

func (g *GraphBackend) FolderExists(ctx context.Context, p string) (bool, error) {
	call, err := g.prepare(ctx)
	if err != nil {
		return false, err
	}
	if cleanPath(p) == "" {
		return true, nil
	}
	u, err := g.checkedItemURL(call, p)
	if err != nil {
		return false, err
	}

	item, status, err := g.getItem(ctx, call, "check folder", u)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK && item.Folder != nil, nil
}

// remoteStatus accepts a 200 response. A 404 is NotFound for the named item;
// anything else is a RemoteAPIFailure. Both keep the upstream status and body.
func remoteStatus(op, kind, name string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return apperrors.NewRemoteNotFoundError(kind, name, resp.StatusCode, httpclient.ReadBody(resp))
	default:
		return apperrors.NewRemoteAPIError(op, resp.StatusCode, httpclient.ReadBody(resp))
	}
}

// getItem returns the item with status 200, or a zero item with status 404.
// Any other status is a RemoteAPIFailure.
func (g *GraphBackend) getItem(ctx context.Context, call *graphCall, op, u string) (*driveItem, int, error) {
	resp, err := g.do(ctx, call, op, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var item driveItem
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return nil, 0, apperrors.NewRemoteTransportError(op, err)
		}
		return &item, http.StatusOK, nil
	case http.StatusNotFound:
		return &driveItem{}, http.StatusNotFound, nil
	default:
		return nil, resp.StatusCode, apperrors.NewRemoteAPIError(op, resp.StatusCode, httpclient.ReadBody(resp))
	}
}

func (g *GraphBackend) createChild(ctx context.Context, call *graphCall, u, name string) (*driveItem, error) {
	const op = "create folder"
	body, err := json.Marshal(newFolderRequest{Name: name, ConflictBehavior: "rename"})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode folder request", err)
	}

	resp, err := g.do(ctx, call, op, http.MethodPost, u, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperrors.NewRemoteAPIError(op, resp.StatusCode, httpclient.ReadBody(resp))
	}

	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, apperrors.NewRemoteTransportError(op, err)
	}
	return &item, nil
}

func (g *GraphBackend) do(ctx context.Context, call *graphCall, op, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, apperrors.NewRemoteTransportError(op, err)
	}
	req.Header.Set("Authorization", "Bearer "+call.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperrors.NewRemoteTransportError(op, err)
	}
	return resp, nil
}

// rootItemURL addresses p relative to the root folder by path.
func (g *GraphBackend) rootItemURL(call *graphCall, p string) string {
	return fmt.Sprintf("%s/drives/%s/root:/%s", g.baseURL, call.driveID, escapePath(joinPath(g.rootFolder, p)))
}

func (g *GraphBackend) checkedItemURL(call *graphCall, p string) (string, error) {
	if _, err := safeSegments(p); err != nil {
		return "", err
	}
	return g.rootItemURL(call, p), nil
}

// safeSegments splits a storage path, rejecting parent references.
func safeSegments(p string) ([]string, error) {
	segments := splitPath(p)
	for _, s := range segments {
		if s == ".." || s == "." {
			return nil, apperrors.NewInvalidPathError(p)
		}
	}
	return segments, nil
}

func escapePath(p string) string {
	segments := splitPath(p)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
