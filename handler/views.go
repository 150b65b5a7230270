package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/TIANLI0/DetectKit/client"
	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/model"
	"github.com/TIANLI0/DetectKit/router"
	"github.com/TIANLI0/DetectKit/service"
	"github.com/TIANLI0/DetectKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates 解析页面模板，pathFor 按路由名称生成链接
func Templates(table *router.Table) (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"pathFor": table.PathFor,
		"join":    strings.Join,
		"dataURL": func(b64 string) template.URL {
			return template.URL("data:image/png;base64," + b64)
		},
	}).ParseFS(templateFS, "templates/*.html")
}

type DetectionAPI interface {
	DetectImage(ctx context.Context, form *client.FormData) (*model.DetectResult, error)
	AnalyzeImage(ctx context.Context, form *client.FormData) (*model.AnalyzeResult, error)
	GetModelStatus(ctx context.Context) (*model.ModelStatus, error)
}

type ResultCache interface {
	GetDetectResult(ctx context.Context, key string) (*model.DetectResult, error)
	SetDetectResult(ctx context.Context, key string, result *model.DetectResult) error
}

type ImagePreparer interface {
	Prepare(data []byte, filename string) ([]byte, error)
}

// HomeView 首页：上传图纸并检测或分析
type HomeView struct {
	cfg      *config.Config
	api      DetectionAPI
	cache    ResultCache
	preparer ImagePreparer
}

// NewHomeView cache 为 nil 时不使用缓存
func NewHomeView(cfg *config.Config, api DetectionAPI, cache ResultCache, preparer ImagePreparer) *HomeView {
	return &HomeView{
		cfg:      cfg,
		api:      api,
		cache:    cache,
		preparer: preparer,
	}
}

func (h *HomeView) Show(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{"Title": "图纸检测"})
}

// Submit 处理上传表单
func (h *HomeView) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	page := gin.H{"Title": "图纸检测"}
	toast := func(status int, msg string) {
		page["Toasts"] = []client.Notification{{Level: "error", Message: msg}}
		c.HTML(status, "home.html", page)
	}

	file, err := c.FormFile("file")
	if err != nil {
		utils.L(ctx).Warn("failed to get uploaded file", zap.Error(err))
		toast(http.StatusBadRequest, "请上传图片文件")
		return
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		toast(http.StatusBadRequest, fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)))
		return
	}

	// 验证文件类型
	if !h.isAllowedType(file.Header.Get("Content-Type")) {
		toast(http.StatusBadRequest, "不支持的文件类型，仅支持 JPEG/PNG/BMP")
		return
	}

	f, err := file.Open()
	if err != nil {
		utils.L(ctx).Error("failed to open uploaded file", zap.Error(err))
		toast(http.StatusInternalServerError, "读取文件失败")
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		utils.L(ctx).Error("failed to read uploaded file", zap.Error(err))
		toast(http.StatusInternalServerError, "读取文件失败")
		return
	}

	md5 := utils.BytesMD5(data)
	action := c.DefaultPostForm("action", "detect")
	modelPath := c.PostForm("model_path")

	utils.L(ctx).Info("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size),
		zap.String("action", action))

	recorder := client.NewRecorder()
	ctx = client.WithNotifier(ctx, recorder)
	cacheKey := service.DetectKey(md5, modelPath)

	if action == "detect" {
		if cached := h.lookup(ctx, cacheKey); cached != nil {
			page["Result"] = cached
			page["Cached"] = true
			c.HTML(http.StatusOK, "home.html", page)
			return
		}
	}

	prepared, err := h.preparer.Prepare(data, file.Filename)
	if err != nil {
		utils.L(ctx).Warn("failed to prepare image", zap.String("md5", md5), zap.Error(err))
		msg := "图片处理失败"
		if errors.Is(err, service.ErrUndecodable) {
			msg = service.ErrUndecodable.Error()
		}
		toast(http.StatusBadRequest, msg)
		return
	}

	form := client.NewImageForm(file.Filename, bytes.NewReader(prepared))
	status := http.StatusOK

	switch action {
	case "analyze":
		res, err := h.api.AnalyzeImage(ctx, form)
		if err != nil {
			status = failed(recorder, err)
			break
		}
		page["Analysis"] = res.Analysis
	default:
		form.Set("model_path", modelPath)
		res, err := h.api.DetectImage(ctx, form)
		if err != nil {
			status = failed(recorder, err)
			break
		}
		page["Result"] = res
		h.store(ctx, cacheKey, res)
	}

	page["Toasts"] = recorder.Notifications()
	c.HTML(status, "home.html", page)
}

func (h *HomeView) lookup(ctx context.Context, key string) *model.DetectResult {
	if h.cache == nil {
		return nil
	}
	cached, err := h.cache.GetDetectResult(ctx, key)
	if err != nil {
		utils.L(ctx).Warn("failed to get cache", zap.Error(err))
		return nil
	}
	if cached != nil {
		utils.L(ctx).Info("cache hit", zap.String("cache_key", key))
	}
	return cached
}

func (h *HomeView) store(ctx context.Context, key string, res *model.DetectResult) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetDetectResult(ctx, key, res); err != nil {
		utils.L(ctx).Warn("failed to set cache", zap.Error(err))
	}
}

func (h *HomeView) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// ModelManagerView 模型管理页
type ModelManagerView struct {
	api DetectionAPI
}

func NewModelManagerView(api DetectionAPI) *ModelManagerView {
	return &ModelManagerView{api: api}
}

func (m *ModelManagerView) Show(c *gin.Context) {
	recorder := client.NewRecorder()
	ctx := client.WithNotifier(c.Request.Context(), recorder)

	page := gin.H{"Title": "模型管理"}
	status := http.StatusOK

	st, err := m.api.GetModelStatus(ctx)
	if err != nil {
		status = failed(recorder, err)
	} else {
		page["Status"] = st
	}

	page["Toasts"] = recorder.Notifications()
	c.HTML(status, "model_manager.html", page)
}

// failed 客户端已经提示过的错误不再重复提示
func failed(recorder *client.Recorder, err error) int {
	if recorder.Len() == 0 {
		recorder.Notify(client.Notification{Level: "error", Message: err.Error()})
	}
	return http.StatusBadGateway
}
