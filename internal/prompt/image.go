package prompt

import (
	"encoding/base64"
	"strings"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

// DefaultImageMIMEType is assumed when the client sends bare base64
const DefaultImageMIMEType = "image/png"

// DecodeImage turns base64 input, optionally a data URL, into an image part
func DecodeImage(field, encoded string) (provider.Part, error) {
	data, mimeType, err := decodeBase64Image(encoded)
	if err != nil {
		return provider.Part{}, domain.NewValidationError(field, field+" is not valid base64 image data")
	}
	return provider.ImagePart(data, mimeType), nil
}

// DecodeImageLenient decodes like DecodeImage but falls back to the raw
// input bytes when the payload is not base64
func DecodeImageLenient(encoded string) provider.Part {
	data, mimeType, err := decodeBase64Image(encoded)
	if err != nil {
		return provider.ImagePart([]byte(encoded), DefaultImageMIMEType)
	}
	return provider.ImagePart(data, mimeType)
}

func decodeBase64Image(encoded string) ([]byte, string, error) {
	mimeType := DefaultImageMIMEType
	payload := strings.TrimSpace(encoded)

	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if found {
			if mt, isBase64 := strings.CutSuffix(header, ";base64"); isBase64 && mt != "" {
				mimeType = mt
			}
			payload = body
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", base64.CorruptInputError(0)
	}
	return data, mimeType, nil
}
