// Package catalog is the fixed registry of club entities that are exposed
// over the CRUD API and take part in client synchronization.
package catalog

import "fmt"

// Kind identifies one synchronized entity type.
type Kind int

const (
	Members Kind = iota
	Payments
	Licenses
	Equipment
	EquipmentPurchases
	Attendances
	Transactions
	Messages

	numKinds
)

// registration order; pull results are enumerated in this order
var kinds = [numKinds]Kind{
	Members,
	Payments,
	Licenses,
	Equipment,
	EquipmentPurchases,
	Attendances,
	Transactions,
	Messages,
}

var schemas = [numKinds]*Schema{
	Members:            membersSchema,
	Payments:           paymentsSchema,
	Licenses:           licensesSchema,
	Equipment:          equipmentSchema,
	EquipmentPurchases: equipmentPurchasesSchema,
	Attendances:        attendancesSchema,
	Transactions:       transactionsSchema,
	Messages:           messagesSchema,
}

var byName map[string]Kind

func init() {
	byName = make(map[string]Kind, numKinds)
	for _, k := range kinds {
		s := schemas[k]
		if s == nil {
			panic(fmt.Sprintf("catalog: kind %d has no schema", k))
		}
		s.build()
		byName[s.Table] = k
	}
}

// Kinds returns every registered kind in registration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds[:])
	return out
}

// Resolve maps a logical entity name such as "members" to its kind.
func Resolve(name string) (Kind, bool) {
	k, ok := byName[name]
	return k, ok
}

func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

func (k Kind) Schema() *Schema {
	if !k.Valid() {
		panic(fmt.Sprintf("catalog: unknown kind %d", k))
	}
	return schemas[k]
}

// Name is the logical entity name, which is also the table name.
func (k Kind) Name() string {
	return k.Schema().Table
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return k.Name()
}
