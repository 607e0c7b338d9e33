package hub

import "encoding/json"

// Inbound control message types (client → hub).
const (
	TypeAuthenticate = "authenticate"
	TypePing         = "ping"
)

// Outbound message types (hub → client).
const (
	TypeAuthenticated      = "authenticated"
	TypeError              = "error"
	TypePong               = "pong"
	TypeNotification       = "notification"
	TypeAppointmentUpdate  = "appointment_update"
	TypeCRMUpdate          = "crm_update"
	TypeBioimpedanceUpdate = "bioimpedance_update"
	TypeStatsUpdate        = "stats_update"
)

// Envelope is the wire framing for inbound messages. Data is left raw so
// each handler can decode its own payload shape.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthenticateData is the payload of an authenticate control message.
// Token is consulted only when a TokenVerifier is configured; otherwise
// the client-supplied identifiers are taken at face value.
type AuthenticateData struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	Token    string `json:"token,omitempty"`
}

// Message is an outbound frame. External collaborators build them through
// the typed constructors below (or pass their own type tag to Broadcast);
// the hub never inspects Data.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type appointmentUpdateData struct {
	Appointment any    `json:"appointment"`
	Action      string `json:"action"`
}

type crmUpdateData struct {
	Entity     any    `json:"entity"`
	EntityType string `json:"entityType"`
	Action     string `json:"action"`
}

type bioimpedanceUpdateData struct {
	Measurement any    `json:"measurement"`
	Action      string `json:"action"`
}

// NewNotification wraps a caller-supplied notification payload.
func NewNotification(notification any) Message {
	return Message{Type: TypeNotification, Data: notification}
}

// NewAppointmentUpdate wraps an appointment change event.
func NewAppointmentUpdate(appointment any, action string) Message {
	return Message{Type: TypeAppointmentUpdate, Data: appointmentUpdateData{Appointment: appointment, Action: action}}
}

// NewCRMUpdate wraps a CRM entity change event.
func NewCRMUpdate(entity any, entityType, action string) Message {
	return Message{Type: TypeCRMUpdate, Data: crmUpdateData{Entity: entity, EntityType: entityType, Action: action}}
}

// NewBioimpedanceUpdate wraps a bioimpedance measurement event.
func NewBioimpedanceUpdate(measurement any, action string) Message {
	return Message{Type: TypeBioimpedanceUpdate, Data: bioimpedanceUpdateData{Measurement: measurement, Action: action}}
}

// NewStatsUpdate wraps a dashboard stats refresh event.
func NewStatsUpdate(stats any) Message {
	return Message{Type: TypeStatsUpdate, Data: stats}
}

func errorMessage(text string) Message {
	return Message{Type: TypeError, Message: text}
}

func pongMessage() Message {
	return Message{Type: TypePong}
}

func authenticatedMessage() Message {
	return Message{Type: TypeAuthenticated, Message: "Autenticado com sucesso"}
}
