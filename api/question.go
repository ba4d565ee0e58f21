package api

import (
	"context"

	"github.com/rs/zerolog/log"
)

type startVideoPayload struct {
	QuestionID string `json:"questionId"`
	RoomID     string `json:"roomId"`
}

type endVideoPayload struct {
	QuestionID string `json:"questionId"`
}

// NotifyCallStarted tells the backend a video session for questionID is
// running in roomID so the student client can join.
func (c *Client) NotifyCallStarted(ctx context.Context, questionID, roomID string) error {
	if err := c.postJSON(ctx, "/start-video", startVideoPayload{QuestionID: questionID, RoomID: roomID}); err != nil {
		return err
	}
	log.Info().Str("module", "api").Str("question", questionID).Str("room", roomID).Msg("video start notified")
	return nil
}

// NotifyCallEnded tells the backend the session for questionID is over.
func (c *Client) NotifyCallEnded(ctx context.Context, questionID string) error {
	if err := c.postJSON(ctx, "/end-video", endVideoPayload{QuestionID: questionID}); err != nil {
		return err
	}
	log.Info().Str("module", "api").Str("question", questionID).Msg("video end notified")
	return nil
}
