// internal/uploader/obs_uploader.go
package uploader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/huaweicloud/huaweicloud-sdk-go-obs/obs"
)

// RunRecord 是一次倒计时结束后归档的摘要
type RunRecord struct {
	ID          string    `json:"id"`
	Outcome     string    `json:"outcome"`
	TotalMs     int64     `json:"total_ms"`
	RemainingMs int64     `json:"remaining_ms"`
	Ticks       int       `json:"ticks"`
	CreatedAt   time.Time `json:"created_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// ObjectKey 返回运行记录在桶中的对象键
func ObjectKey(prefix, id string) string {
	return path.Join(prefix, id+".json")
}

// Encode 将运行记录编码为归档用的 JSON
func (r RunRecord) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ObsUploader 封装了 OBS 客户端和目标桶
type ObsUploader struct {
	client *obs.ObsClient
	bucket string
	prefix string
}

// NewObsUploader 创建一个新的上传器，对象写在 bucket 的 prefix 目录下
func NewObsUploader(endpoint, ak, sk, bucket, prefix string) (*ObsUploader, error) {
	client, err := obs.New(ak, sk, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create OBS client: %w", err)
	}
	return &ObsUploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// ArchiveRun 上传一次结束或取消的运行记录
func (u *ObsUploader) ArchiveRun(record RunRecord) error {
	body, err := record.Encode()
	if err != nil {
		return fmt.Errorf("encode run %s: %w", record.ID, err)
	}

	input := &obs.PutObjectInput{}
	input.Bucket = u.bucket
	input.Key = ObjectKey(u.prefix, record.ID)
	input.Body = bytes.NewReader(body)

	if _, err := u.client.PutObject(input); err != nil {
		if obsError, ok := err.(obs.ObsError); ok {
			return fmt.Errorf("archive run %s: OBS code %s: %s", record.ID, obsError.Code, obsError.Message)
		}
		return fmt.Errorf("archive run %s: %w", record.ID, err)
	}
	return nil
}

// Close 关闭 OBS 客户端
func (u *ObsUploader) Close() {
	if u.client != nil {
		u.client.Close()
	}
}
