// Package collection is the public face of memdoc: a Collection stores
// documents by primary key, enforces declared unique fields, expires
// records according to a ttl.Policy and answers queries.
//
// Writes (Insert, Update, Upsert, Delete) run their whole
// check-then-apply sequence under the collection's write lock. Every
// write reads the clock once, purges what is due at that instant and then
// validates, so a failing write leaves records and unique indexes exactly
// as they were. Reads and queries take a snapshot under the read lock and
// evaluate it afterwards.
//
// Example:
//
//	users, _ := collection.New(collection.Config{
//		Name:         "users",
//		PrimaryKey:   "id",
//		UniqueFields: []string{"email"},
//		TTL:          ttl.Fixed(time.Hour),
//	})
//	users.Insert(document.New(document.F("id", "1"), document.F("email", "a@x.com")))
//	docs, err := users.Select("id,email").Eq("email", "a@x.com").Execute()
//
// Committed changes can be observed with Subscribe; events are delivered
// asynchronously on a goroutine per subscription.
package collection
