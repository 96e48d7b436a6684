package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	EventSource  = "tutoring-service"
	EventVersion = "1.0"
)

// Topics
const (
	TopicAuthState = "auth.state_changed"
	TopicDomain    = "tutoring.events"
)

type EventType string

const (
	EventAuthStateChanged   EventType = "auth.state_changed"
	EventProfileCreated     EventType = "profile.created"
	EventProfileRoleChanged EventType = "profile.role_changed"
	EventLessonScheduled    EventType = "lesson.scheduled"
	EventLessonCompleted    EventType = "lesson.completed"
	EventLessonCancelled    EventType = "lesson.cancelled"
	EventHomeworkAssigned   EventType = "homework.assigned"
	EventHomeworkSubmitted  EventType = "homework.submitted"
	EventHomeworkGraded     EventType = "homework.graded"
	EventFeedbackLeft       EventType = "feedback.left"
	EventFileUploaded       EventType = "file.uploaded"
)

// Event is the envelope for everything published on the bus.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// DecodeData unmarshals the event payload into dst.
func (e *Event) DecodeData(dst interface{}) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal event data: %w", err)
	}
	return nil
}

func toMessage(event *Event) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	return msg, nil
}

// FromMessage decodes a bus message back into an Event.
func FromMessage(msg *message.Message) (*Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

// LessonEventData is the payload of lesson lifecycle events.
type LessonEventData struct {
	LessonID  string `json:"lesson_id"`
	StudentID string `json:"student_id"`
	TutorID   string `json:"tutor_id"`
	Status    string `json:"status"`
	ActorID   string `json:"actor_id"`
}

// HomeworkEventData is the payload of homework events.
type HomeworkEventData struct {
	HomeworkID   string   `json:"homework_id"`
	SubmissionID string   `json:"submission_id,omitempty"`
	StudentID    string   `json:"student_id"`
	TutorID      string   `json:"tutor_id"`
	Score        *float64 `json:"score,omitempty"`
	ActorID      string   `json:"actor_id"`
}

// ProfileEventData is the payload of profile events.
type ProfileEventData struct {
	ProfileID string `json:"profile_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	PrevRole  string `json:"prev_role,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}
