package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/metrics"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/service"
	"github.com/TIANLI0/TipGuide/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

type TargetHandler struct {
	cfg      *config.Config
	cache    *service.TargetCache
	targets  *service.TargetService
	guidance *service.GuidanceService
	metrics  *metrics.Metrics
}

func NewTargetHandler(cfg *config.Config, cache *service.TargetCache, targets *service.TargetService,
	guidance *service.GuidanceService, m *metrics.Metrics) *TargetHandler {
	return &TargetHandler{
		cfg:      cfg,
		cache:    cache,
		targets:  targets,
		guidance: guidance,
		metrics:  m,
	}
}

// upload 上传的培养板图片
type upload struct {
	path string
	md5  string
	img  gocv.Mat
}

func (u *upload) Close() {
	u.img.Close()
}

// Extract 上传培养板图片并返回根尖目标点
func (h *TargetHandler) Extract(c *gin.Context) {
	up, ok := h.receive(c)
	if !ok {
		return
	}
	defer up.Close()

	withOverlay := c.DefaultPostForm("overlay", "false") == "true"

	result, ok := h.resolveTargets(c, up)
	if !ok {
		return
	}
	if withOverlay {
		result.Overlay = h.targets.RenderOverlay(up.img, result)
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: "processed",
		Data:    result,
	})
}

// GetByMD5 根据MD5获取已缓存的目标点
func (h *TargetHandler) GetByMD5(c *gin.Context) {
	md5 := c.Param("md5")
	if md5 == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "missing md5",
		})
		return
	}

	result, err := h.cache.GetTargetResult(c.Request.Context(), md5)
	if err != nil {
		utils.Logger.Error("failed to get target result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "cache lookup failed",
			Error:   err.Error(),
		})
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "no targets for this image",
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: "found",
		Data:    result,
	})
}

// Guide 上传图片，提取目标点后依次引导机器人
func (h *TargetHandler) Guide(c *gin.Context) {
	up, ok := h.receive(c)
	if !ok {
		return
	}
	defer up.Close()

	result, ok := h.resolveTargets(c, up)
	if !ok {
		return
	}

	episodes, err := h.guidance.Guide(c.Request.Context(), result.Targets)
	if err != nil {
		utils.Logger.Error("guidance failed", zap.String("md5", up.md5), zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		resp := model.ErrorResponse{
			Success: false,
			Message: "guidance failed",
			Error:   err.Error(),
		}
		if len(episodes) > 0 {
			resp.Data = model.GuidanceResult{
				MD5:      up.md5,
				Targets:  result,
				Episodes: episodes,
			}
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: fmt.Sprintf("%d episodes", len(episodes)),
		Data: model.GuidanceResult{
			MD5:      up.md5,
			Targets:  result,
			Episodes: episodes,
		},
	})
}

// resolveTargets 优先读缓存，未命中时运行提取流水线
func (h *TargetHandler) resolveTargets(c *gin.Context, up *upload) (*model.TargetResult, bool) {
	ctx := c.Request.Context()

	cached, err := h.cache.GetTargetResult(ctx, up.md5)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		h.metrics.CacheLookups.WithLabelValues("hit").Inc()
		utils.Logger.Info("cache hit", zap.String("md5", up.md5))
		return cached, true
	}
	h.metrics.CacheLookups.WithLabelValues("miss").Inc()

	result, err := h.targets.Extract(ctx, up.img, up.md5)
	if err != nil {
		utils.Logger.Error("failed to process image", zap.String("md5", up.md5), zap.Error(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrNoPlateEdgeDetected):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, service.ErrQueueFull):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, model.ErrorResponse{
			Success: false,
			Message: "target extraction failed",
			Error:   err.Error(),
		})
		return nil, false
	}

	if err := h.cache.SetTargetResult(ctx, up.md5, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}
	return result, true
}

// receive 校验并保存上传文件，解码为图像
func (h *TargetHandler) receive(c *gin.Context) (*upload, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "missing image file",
			Error:   err.Error(),
		})
		return nil, false
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("file exceeds limit (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "unsupported file type",
		})
		return nil, false
	}

	// 生成文件名
	ext := filepath.Ext(file.Filename)
	filename := fmt.Sprintf("%d%s", utils.GenerateID(), ext)
	savePath := filepath.Join(h.cfg.Upload.UploadDir, filename)

	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to save file",
			Error:   err.Error(),
		})
		return nil, false
	}

	// 处理完成后删除临时文件（如果配置启用）
	if h.cfg.Upload.CleanupTempFiles {
		defer func() {
			if err := os.Remove(savePath); err != nil {
				utils.Logger.Warn("failed to delete temp file",
					zap.String("file", savePath),
					zap.Error(err))
			}
		}()
	}

	md5, err := utils.FileMD5(savePath)
	if err != nil {
		utils.Logger.Error("failed to calculate md5", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to hash file",
			Error:   err.Error(),
		})
		return nil, false
	}

	img := gocv.IMRead(savePath, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "cannot decode image",
		})
		return nil, false
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	return &upload{path: savePath, md5: md5, img: img}, true
}

func (h *TargetHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
