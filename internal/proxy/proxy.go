package proxy

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sunshineplan/imgconv"
	"github.com/tidwall/gjson"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/validation"
)

const maxProxyBody = 16 << 20

// Controller relays console requests to the WhatsApp automation server and
// to external image hosts the browser cannot reach directly.
type Controller struct {
	httpClient *http.Client
}

func NewController() *Controller {
	return &Controller{
		httpClient: &http.Client{
			Timeout: env.GetEnvDurationOrDefault("PROXY_HTTP_TIMEOUT", 60*time.Second),
		},
	}
}

type requestForward struct {
	ServerURL string          `json:"serverUrl"`
	APIKey    string          `json:"apiKey"`
	Endpoint  string          `json:"endpoint"`
	Method    string          `json:"method"`
	Body      json.RawMessage `json:"body"`
}

// Forward
// @Summary     Relay a request to the automation server
// @Description Forwards an API call to the configured automation server with its X-API-Key
// @Tags        Proxy
// @Accept      json
// @Produce     json
// @Success     200
// @Router      /local-api/forward [post]
func (ctl *Controller) Forward(c *fiber.Ctx) error {
	var req requestForward
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if req.ServerURL == "" || req.Endpoint == "" {
		return router.ResponseBadRequest(c, "serverUrl and endpoint are required")
	}
	if err := validation.ValidateProxyTarget(req.ServerURL); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	base := strings.TrimSuffix(strings.TrimSpace(req.ServerURL), "/")
	path := req.Endpoint
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	upstream, err := http.NewRequestWithContext(c.UserContext(), method, base+path, body)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	if req.APIKey != "" {
		upstream.Header.Set("X-API-Key", req.APIKey)
	}
	if body != nil {
		upstream.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}

	resp, err := ctl.httpClient.Do(upstream)
	if err != nil {
		log.Print(c).WithError(err).Warn("Forward to automation server failed")
		return router.ResponseBadGateway(c, err.Error())
	}
	defer resp.Body.Close()

	return relayJSON(c, resp)
}

type requestSetGroupImage struct {
	ServerURL    string `json:"serverUrl"`
	APIKey       string `json:"apiKey"`
	GroupID      string `json:"groupId"`
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType"`
	BufferBase64 string `json:"bufferBase64"`
}

// SetGroupImage
// @Summary     Relay a group image upload to the automation server
// @Description Converts the image to JPEG when needed and uploads it as multipart form data
// @Tags        Proxy
// @Accept      json
// @Produce     json
// @Success     200
// @Router      /local-api/groups/set-image [post]
func (ctl *Controller) SetGroupImage(c *fiber.Ctx) error {
	var req requestSetGroupImage
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if req.ServerURL == "" || req.GroupID == "" || req.BufferBase64 == "" {
		return router.ResponseBadRequest(c, "serverUrl, groupId, bufferBase64 are required")
	}
	if err := validation.ValidateProxyTarget(req.ServerURL); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	raw, err := base64.StdEncoding.DecodeString(req.BufferBase64)
	if err != nil {
		return router.ResponseBadRequest(c, "bufferBase64 is not valid base64")
	}

	imageBytes, fileName, err := asJPEG(raw, req.MimeType, req.FileName)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	if err := writer.WriteField("groupId", req.GroupID); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	part, err := writer.CreateFormFile("image", fileName)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	if _, err := part.Write(imageBytes); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	if err := writer.Close(); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	base := strings.TrimSuffix(strings.TrimSpace(req.ServerURL), "/")
	upstream, err := http.NewRequestWithContext(c.UserContext(), http.MethodPost, base+"/api/groups/set-image", &form)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	upstream.Header.Set("Content-Type", writer.FormDataContentType())
	if req.APIKey != "" {
		upstream.Header.Set("X-API-Key", req.APIKey)
	}

	resp, err := ctl.httpClient.Do(upstream)
	if err != nil {
		log.Print(c).WithError(err).Warn("Group image relay failed")
		return router.ResponseBadGateway(c, err.Error())
	}
	defer resp.Body.Close()

	return relayJSON(c, resp)
}

// asJPEG re-encodes non-JPEG uploads as JPEG; the automation server only
// accepts JPEG group images. Already-JPEG input passes through untouched.
func asJPEG(raw []byte, mimeType, fileName string) ([]byte, string, error) {
	if strings.EqualFold(mimeType, "image/jpeg") || strings.EqualFold(mimeType, "image/jpg") {
		if fileName == "" {
			fileName = "group.jpg"
		}
		return raw, fileName, nil
	}

	decoded, err := imgconv.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	var out bytes.Buffer
	if err := imgconv.Write(&out, decoded, &imgconv.FormatOption{Format: imgconv.JPEG}); err != nil {
		return nil, "", err
	}

	name := strings.TrimSpace(fileName)
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	if name == "" {
		name = "group"
	}
	return out.Bytes(), name + ".jpg", nil
}

// ImageProxy
// @Summary     Fetch a remote image on the console's behalf
// @Tags        Proxy
// @Produce     octet-stream
// @Param       url query string true "Image URL"
// @Success     200
// @Router      /local-api/image-proxy [get]
func (ctl *Controller) ImageProxy(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		return router.ResponseBadRequest(c, "url parameter is required")
	}
	if err := validation.ValidateProxyTarget(target); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	upstream, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, target, nil)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	upstream.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := ctl.httpClient.Do(upstream)
	if err != nil {
		return c.SendStatus(fiber.StatusBadGateway)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.SendStatus(resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return c.SendStatus(fiber.StatusBadGateway)
	}
	return c.Status(resp.StatusCode).Send(data)
}

// relayJSON passes the upstream status and body through. Non-JSON upstream
// bodies are wrapped so the console always receives JSON.
func relayJSON(c *fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return router.ResponseBadGateway(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if len(bytes.TrimSpace(data)) == 0 {
		return c.Status(resp.StatusCode).SendString("{}")
	}
	if gjson.ValidBytes(data) {
		return c.Status(resp.StatusCode).Send(data)
	}

	wrapped, err := json.Marshal(fiber.Map{"message": string(data)})
	if err != nil {
		return router.ResponseBadGateway(c, err.Error())
	}
	return c.Status(resp.StatusCode).Send(wrapped)
}
