package bookings

const (
	TopicBookingConfirmed = "booking.confirmed"

	// RoutingBookingConfirmed is the AMQP routing key for the same event.
	RoutingBookingConfirmed = "booking.confirmed"
)

// Partition key = tenant id, so confirmations of one tenant stay ordered.
func PartitionKey(tenantID string) []byte { return []byte(tenantID) }
