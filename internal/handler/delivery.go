package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ShareGate/config"
	"ShareGate/internal/event"
	"ShareGate/internal/resource"
	"ShareGate/internal/service"
	"ShareGate/internal/storage"
	"ShareGate/model"
	"ShareGate/utils"

	"github.com/gin-gonic/gin"
)

// RouteResolver maps a named route and its parameters to a redirect URL.
// Route registration lives in the embedding application.
type RouteResolver func(name string, params map[string]string) (string, bool)

// DefaultRouteResolver treats the route name as a root path and encodes
// the parameters as a query string.
func DefaultRouteResolver(name string, params map[string]string) (string, bool) {
	target := "/" + strings.TrimPrefix(name, "/")
	if len(params) == 0 {
		return target, true
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return target + "?" + values.Encode(), true
}

// Delivery resolves how a validated record is served.
type Delivery struct {
	cfg    *config.Config
	store  storage.Store
	routes RouteResolver
	sinks  event.Sinks
}

// NewDelivery wires the delivery resolver.
func NewDelivery(cfg *config.Config, store storage.Store, routes RouteResolver, sinks event.Sinks) *Delivery {
	if routes == nil {
		routes = DefaultRouteResolver
	}
	return &Delivery{cfg: cfg, store: store, routes: routes, sinks: sinks}
}

// AccessShareLinkHandler gates an access attempt through the validity
// pipeline and serves the resource on success.
func AccessShareLinkHandler(pipeline *service.Pipeline, delivery *Delivery) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := service.AccessRequest{
			Token:     c.Param("token"),
			ClientIP:  c.ClientIP(),
			Password:  c.Query("password"),
			Signature: c.Query("signature"),
			Expires:   c.Query("expires"),
		}
		link, denial, err := pipeline.Authorize(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if denial != nil {
			c.JSON(denial.Status, denial)
			return
		}
		delivery.Serve(c, link)
	}
}

// Serve dispatches on the resource variant of a validated record.
func (d *Delivery) Serve(c *gin.Context, link *model.ShareLink) {
	switch res := link.Resource.Resource.(type) {
	case resource.LocalFile:
		if d.serveLocalFile(c, link, res.Path) {
			return
		}
	case resource.StorageRef:
		if d.serveStorage(c, link, res) {
			return
		}
	case resource.RouteTarget:
		if target, ok := d.routes(res.Name, res.Params); ok {
			d.sinks.Emit(event.KindAccessed, link)
			c.Redirect(http.StatusFound, target)
			return
		}
	case resource.ModelRef:
		d.sinks.Emit(event.KindAccessed, link)
		c.JSON(http.StatusOK, gin.H{
			"status": 200,
			"code":   "sharelink.model_preview",
			"title":  "Model preview",
			"detail": "The application defines how this model is presented.",
			"model":  gin.H{"class": res.Class, "id": res.ID},
		})
		return
	}

	// Fallback: public-safe JSON representation. No Accessed event.
	c.JSON(http.StatusOK, link.PublicPayload())
}

// serveLocalFile serves a file from the local filesystem. Returns false
// when the file is gone so the caller falls through to the JSON fallback.
func (d *Delivery) serveLocalFile(c *gin.Context, link *model.ShareLink, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	d.sinks.Emit(event.KindAccessed, link)

	name := utils.SanitizeHeaderFilename(filepath.Base(path))
	disposition := fmt.Sprintf(`attachment; filename="%s"`, name)

	// Delegate to the reverse proxy when configured.
	if d.cfg.XSendfile {
		c.Header("X-Sendfile", path)
		c.Header("Content-Disposition", disposition)
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)
		return true
	}
	if d.cfg.XAccelRedirect != "" {
		c.Header("X-Accel-Redirect", strings.TrimRight(d.cfg.XAccelRedirect, "/")+"/"+name)
		c.Header("Content-Disposition", disposition)
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)
		return true
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := info.Size()

	if rangeHeader := c.GetHeader("Range"); strings.HasPrefix(rangeHeader, "bytes=") {
		d.serveRange(c, path, rangeHeader, size, contentType, disposition)
		return true
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Header("Content-Disposition", disposition)
	c.Header("Cache-Control", "no-store")
	file, err := os.Open(path)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return true
	}
	defer file.Close()
	c.Status(http.StatusOK)
	streamBounded(c, file, size)
	return true
}

// serveRange answers a bytes=start-end request with 206, or 416 when the
// bounds are unsatisfiable.
func (d *Delivery) serveRange(c *gin.Context, path, rangeHeader string, size int64, contentType, disposition string) {
	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Header("Accept-Ranges", "bytes")
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - start + 1
	file, err := os.Open(path)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	defer file.Close()
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(length, 10))
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", disposition)
	c.Status(http.StatusPartialContent)
	streamBounded(c, file, length)
}

// streamBounded copies exactly length bytes in chunks, stopping early when
// the client goes away. The file is never buffered whole.
func streamBounded(c *gin.Context, r io.Reader, length int64) {
	ctx := c.Request.Context()
	buf := make([]byte, 8192)
	remaining := length
	for remaining > 0 {
		if ctx.Err() != nil {
			return
		}
		chunk := int64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := r.Read(buf[:chunk])
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			remaining -= int64(n)
		}
		if err != nil {
			return
		}
	}
}

// parseRange parses "bytes=start-end" (end optional). Bounds are
// unsatisfiable when start > end or end >= size.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	endStr := strings.TrimSpace(parts[1])
	if endStr == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}
	if start > end || end >= size {
		return 0, 0, false
	}
	return start, end, true
}

// serveStorage streams an object from the storage backend, or redirects to
// a presigned URL when a TTL is configured. Returns false when the object
// cannot be resolved.
func (d *Delivery) serveStorage(c *gin.Context, link *model.ShareLink, ref resource.StorageRef) bool {
	if d.store == nil {
		return false
	}
	name := utils.SanitizeHeaderFilename(filepath.Base(ref.Path))
	disposition := fmt.Sprintf(`attachment; filename="%s"`, name)

	if d.cfg.StorageTTL > 0 {
		signed, err := d.store.PresignedGetObject(
			c.Request.Context(),
			ref.Disk,
			ref.Path,
			d.cfg.StorageTTL,
			map[string]string{"response-content-disposition": disposition},
		)
		if err != nil {
			return false
		}
		d.sinks.Emit(event.KindAccessed, link)
		c.Redirect(http.StatusFound, signed)
		return true
	}

	object, info, err := d.store.GetObject(c.Request.Context(), ref.Disk, ref.Path)
	if err != nil {
		return false
	}
	defer object.Close()

	d.sinks.Emit(event.KindAccessed, link)
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	if info.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	c.Header("Content-Disposition", disposition)
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, object); err != nil {
		return true
	}
	return true
}
