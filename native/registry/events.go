package registry

const (
	EventTypeRegistered        = "registry.registered"
	EventTypeDeregistered      = "registry.deregistered"
	EventTypeReputationUpdated = "registry.reputation_updated"
)
