// Package i18n holds the user-facing messages in Chinese and English and the
// request locale negotiation.
package i18n

import (
	"context"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	BadRequest          = "bad_request"
	Unauthorized        = "unauthorized"
	Forbidden           = "forbidden"
	NotFound            = "not_found"
	Internal            = "internal"
	RateLimited         = "rate_limited"
	InvalidCredentials  = "invalid_credentials"
	InsufficientCredits = "insufficient_credits"
	PasswordTooShort    = "password_too_short"
	PhotoRequired       = "photo_required"
	NotAnImage          = "not_an_image"
	TooLarge            = "too_large"
	SwatchRequired      = "swatch_required"
	InvalidHex          = "invalid_hex"
	CategoryInUse       = "category_in_use"
	CategoryExists      = "category_exists"
	UploadFailed        = "upload_failed"
	OrphanedAsset       = "orphaned_asset"
	RecolorBusy         = "recolor_busy"
	RecolorFailed       = "recolor_failed"
	RecolorTimeout      = "recolor_timeout"
	RecolorCanceled     = "recolor_canceled"
	TaskPending         = "task_pending"
	MissingJobFields    = "missing_job_fields"
	MissingTaskID       = "missing_task_id"
	UnknownAction       = "unknown_action"
	UpstreamFailed      = "upstream_failed"
	PredictionFailed    = "prediction_failed"
)

var (
	// Chinese is the default locale.
	Chinese = language.Chinese
	English = language.English

	supported = []language.Tag{Chinese, English}
	matcher   = language.NewMatcher(supported)
)

var messages = map[string][2]string{
	BadRequest:          {"请求无效", "invalid request"},
	Unauthorized:        {"请先登录", "login required"},
	Forbidden:           {"需要管理员权限", "administrator access required"},
	NotFound:            {"未找到", "not found"},
	Internal:            {"服务器内部错误", "internal server error"},
	RateLimited:         {"请求过于频繁，请稍后再试", "too many requests, try again later"},
	InvalidCredentials:  {"用户名或密码错误", "invalid username or password"},
	InsufficientCredits: {"点数不足", "not enough credits"},
	PasswordTooShort:    {"密码至少需要 %d 个字符", "password must be at least %d characters"},
	PhotoRequired:       {"请上传家具照片", "a furniture photo is required"},
	NotAnImage:          {"文件不是有效的图片", "the file is not a supported image"},
	TooLarge:            {"图片超过 %d MB", "image exceeds %d MB"},
	SwatchRequired:      {"请选择色卡", "a swatch is required"},
	InvalidHex:          {"颜色代码必须为 #RRGGBB", "hex must look like #RRGGBB"},
	CategoryInUse:       {"该分类下仍有色卡，无法删除", "category still has swatches"},
	CategoryExists:      {"分类已存在", "category already exists"},
	UploadFailed:        {"纹理上传失败", "texture upload failed"},
	OrphanedAsset:       {"纹理已上传但保存失败", "texture uploaded but the swatch could not be saved"},
	RecolorBusy:         {"已有换色任务正在进行", "a recolor is already running"},
	RecolorFailed:       {"换色失败，已显示原图：%s", "recolor failed, showing the original image: %s"},
	RecolorTimeout:      {"换色超时，已显示原图", "recolor timed out, showing the original image"},
	RecolorCanceled:     {"换色已取消", "recolor canceled"},
	TaskPending:         {"任务仍在处理中", "task is still running"},
	MissingJobFields:    {"缺少 image_url 或 prompt", "missing image_url or prompt"},
	MissingTaskID:       {"缺少 task_id", "missing task_id"},
	UnknownAction:       {"未知操作", "invalid action"},
	UpstreamFailed:      {"上游服务错误：%s", "upstream error: %s"},
	PredictionFailed:    {"生成失败或超时：%s", "prediction failed or timed out: %s"},
}

func init() {
	for key, texts := range messages {
		_ = message.SetString(Chinese, key, texts[0])
		_ = message.SetString(English, key, texts[1])
	}
}

// Negotiate picks the locale from an explicit override (X-Locale) or the
// Accept-Language header. Unknown preferences fall back to Chinese.
func Negotiate(override, acceptLanguage string) language.Tag {
	if override = strings.TrimSpace(override); override != "" {
		if tag, err := language.Parse(override); err == nil {
			_, idx, conf := matcher.Match(tag)
			if conf != language.No {
				return supported[idx]
			}
		}
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Chinese
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Chinese
	}
	return supported[idx]
}

type localeKey struct{}

// WithLocale stores the request locale.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeKey{}, tag)
}

// FromContext returns the request locale, Chinese when unset.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return Chinese
}

// T renders the message for key in the context locale.
func T(ctx context.Context, key string, args ...any) string {
	return Sprintf(FromContext(ctx), key, args...)
}

// Sprintf renders the message for key in the given locale.
func Sprintf(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(tag).Sprintf(key, args...)
}
