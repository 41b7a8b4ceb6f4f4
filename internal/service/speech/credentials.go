package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/sunabot/sunabot/backend/internal/model/speech"
)

// ErrCredentialsMissing means the TTS provider cannot be reached for lack of
// an app ID or access token.
var ErrCredentialsMissing = errors.New("speech: SPEECH_APP_ID or SPEECH_ACCESS_TOKEN missing")

func resolveCredentials(cfg *speechmodel.SpeechConfig) (appID, token string, err error) {
	if cfg == nil {
		return "", "", ErrCredentialsMissing
	}
	appID = strings.TrimSpace(cfg.AppID)
	token = strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", ErrCredentialsMissing
	}
	return appID, token, nil
}
