package orders

// All lifecycle events share one topic; consumers route on the
// x-event-type header.
const TopicOrderEvents = "order.events"

// Partition key = order_id so all events for one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
