package process

import "go.mongodb.org/mongo-driver/v2/bson"

// NewProcessID mints an opaque, time-sortable 12-byte process identifier.
// The id is the hex form of a MongoDB ObjectID; every backend, Mongo
// included, stores that hex string in each event's process_id field.
func NewProcessID() string {
	return bson.NewObjectID().Hex()
}

// ValidProcessID reports whether id is a well-formed process identifier.
func ValidProcessID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}
