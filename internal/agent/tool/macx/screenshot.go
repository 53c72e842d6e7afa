package macx

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/bytedance/gg/gconv"

	"github.com/tgifai/macmate/internal/macagent"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

const screenshotCaption = "Screenshot from your Mac"

// PhotoSink delivers an image to the chat that started the conversation.
type PhotoSink func(ctx context.Context, photo []byte, caption string) error

type photoSinkKey struct{}

// WithPhotoSink attaches the chat's photo delivery to ctx. Interactive
// screenshots are sent through it.
func WithPhotoSink(ctx context.Context, sink PhotoSink) context.Context {
	return context.WithValue(ctx, photoSinkKey{}, sink)
}

func photoSinkFrom(ctx context.Context) PhotoSink {
	sink, _ := ctx.Value(photoSinkKey{}).(PhotoSink)
	return sink
}

// chatScreenshot takes a screenshot and, when the conversation has a photo
// sink, reads the image back from the Mac and posts it in the chat.
type chatScreenshot struct {
	*agentTool
}

func (t *chatScreenshot) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	out, err := t.agentTool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	res, _ := out.(map[string]interface{})
	if ok, _ := res["success"].(bool); !ok {
		return out, nil
	}

	sink := photoSinkFrom(ctx)
	path := gconv.To[string](res["filepath"])
	if sink == nil || path == "" {
		return out, nil
	}

	if err := t.deliver(ctx, sink, path); err != nil {
		logs.CtxWarn(ctx, "[tool:%s] screenshot %s not delivered: %v", t.name, path, err)
		res["sent_to_chat"] = false
		res["delivery_error"] = err.Error()
		return res, nil
	}
	res["sent_to_chat"] = true
	res["message"] = "Screenshot taken and sent to the chat"
	return res, nil
}

func (t *chatScreenshot) deliver(ctx context.Context, sink PhotoSink, path string) error {
	img := t.caller.Call(ctx, macagent.ActionReadImage, map[string]any{"filepath": path})
	if !img.Success() {
		if msg := img.ErrMsg(); msg != "" {
			return errors.New(msg)
		}
		return errors.New("failed to read screenshot")
	}
	encoded := gconv.To[string](img["image_data"])
	if encoded == "" {
		return errors.New("mac agent returned no image data")
	}
	photo, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	return sink(ctx, photo, screenshotCaption)
}
