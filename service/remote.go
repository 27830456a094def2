package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/TIANLI0/TipGuide/config"
	"gocv.io/x/gocv"
)

// remoteClient 外部模型/环境服务的 HTTP 客户端
type remoteClient struct {
	baseURL string
	client  *http.Client
}

func newRemoteClient(baseURL string, cfg *config.ModelsConfig) remoteClient {
	return remoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c remoteClient) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c remoteClient) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(data), out)
}

// RemoteSegmenter 通过 HTTP 调用分割模型
type RemoteSegmenter struct {
	remoteClient
}

func NewRemoteSegmenter(cfg *config.ModelsConfig) *RemoteSegmenter {
	return &RemoteSegmenter{newRemoteClient(cfg.SegmenterURL, cfg)}
}

type maskResponse struct {
	Height int       `json:"height"`
	Width  int       `json:"width"`
	Data   []float32 `json:"data"`
}

// PredictMask 上传 PNG 编码的裁剪图像，返回 CV_32F 概率掩码
func (s *RemoteSegmenter) PredictMask(ctx context.Context, img gocv.Mat) (gocv.Mat, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	var resp maskResponse
	if err := s.post(ctx, "/predict_mask", "image/png", bytes.NewReader(buf.GetBytes()), &resp); err != nil {
		return gocv.NewMat(), err
	}
	return matFromFloats(resp.Height, resp.Width, resp.Data)
}

// RemotePolicy 通过 HTTP 调用控制策略
type RemotePolicy struct {
	remoteClient
}

func NewRemotePolicy(cfg *config.ModelsConfig) *RemotePolicy {
	return &RemotePolicy{newRemoteClient(cfg.PolicyURL, cfg)}
}

type predictRequest struct {
	Observation []float64 `json:"observation"`
}

type predictResponse struct {
	Action []float64 `json:"action"`
	State  any       `json:"state,omitempty"`
}

func (p *RemotePolicy) Predict(ctx context.Context, observation []float64) ([]float64, any, error) {
	var resp predictResponse
	if err := p.postJSON(ctx, "/predict", predictRequest{Observation: observation}, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Action, resp.State, nil
}

// RemoteEnvironment 通过 HTTP 控制真实或仿真机器人
type RemoteEnvironment struct {
	remoteClient
}

func NewRemoteEnvironment(cfg *config.ModelsConfig) *RemoteEnvironment {
	return &RemoteEnvironment{newRemoteClient(cfg.EnvironmentURL, cfg)}
}

type observationResponse struct {
	Observation []float64 `json:"observation"`
}

type stepRequest struct {
	Action []float64 `json:"action"`
}

type goalRequest struct {
	Goal [3]float64 `json:"goal"`
}

func (e *RemoteEnvironment) Reset(ctx context.Context) ([]float64, error) {
	var resp observationResponse
	if err := e.postJSON(ctx, "/reset", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Observation, nil
}

func (e *RemoteEnvironment) Step(ctx context.Context, action []float64) (StepResult, error) {
	var resp StepResult
	if err := e.postJSON(ctx, "/step", stepRequest{Action: action}, &resp); err != nil {
		return StepResult{}, err
	}
	return resp, nil
}

func (e *RemoteEnvironment) SetGoal(ctx context.Context, goal [3]float64) error {
	return e.postJSON(ctx, "/goal", goalRequest{Goal: goal}, nil)
}
