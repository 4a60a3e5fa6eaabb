package domain

import "strings"

// Agent is a staff member who can own leads.
type Agent struct {
	ID    string
	Name  string
	Email string
	Role  string
}

func NewAgent(id, name, email, role string) (Agent, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Agent{}, ErrInvalidID
	}
	if name == "" {
		return Agent{}, ErrInvalidName
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "agent"
	}
	return Agent{ID: id, Name: name, Email: strings.TrimSpace(email), Role: role}, nil
}
