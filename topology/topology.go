// Package topology derives queue and exchange names from an ordered list of
// layers and a traffic direction.
//
// Queue names are "<direction>.<destination layer>", so there is no southbound
// queue for the first layer and no northbound queue for the last layer. Both
// boundary cases resolve to absence, not errors, callers must check before
// subscribing or publishing.
package topology

// Direction of traffic between adjacent layers.
type Direction string

const (
	// Southbound flows toward the last layer.
	Southbound Direction = "southbound"
	// Northbound flows toward the first layer.
	Northbound Direction = "northbound"
)

// Exchange name prefix, the remainder is the queue name.
const exchangePrefix = "exchange."

// Directions in canonical order, southbound first.
var Directions = []Direction{Southbound, Northbound}

// Check whether d is one of the two recognized directions.
func (d Direction) Valid() bool {
	return d == Southbound || d == Northbound
}

// Check whether a queue exists for the layer at idx in the given direction.
//
// False only for the two boundary exclusions: southbound to the first layer,
// northbound to the last layer.
func ExistsQueue(d Direction, idx int, layers []string) bool {
	if (d == Southbound && idx == 0) || (d == Northbound && idx == len(layers)-1) {
		return false
	}
	return true
}

// Build queue name "<direction>.<layer>".
//
// Returns ok=false when layer is empty or direction is unrecognized. Boundary
// exclusion is not checked here, use ExistsQueue first.
func QueueName(d Direction, layer string) (string, bool) {
	if layer == "" || !d.Valid() {
		return "", false
	}
	return string(d) + "." + layer, true
}

// Build exchange name "exchange.<direction>.<layer>".
//
// Undefined under the same conditions as QueueName.
func ExchangeName(d Direction, layer string) (string, bool) {
	queue, ok := QueueName(d, layer)
	if !ok {
		return "", false
	}
	return exchangePrefix + queue, true
}

// Enumerate every existing queue name for the ordered layers, both directions,
// southbound-ascending then northbound-ascending, boundary-excluded.
func AllQueueNames(layers []string) []string {
	names := make([]string, 0, 2*len(layers))
	for _, d := range Directions {
		for idx, layer := range layers {
			if !ExistsQueue(d, idx, layers) {
				continue
			}
			if name, ok := QueueName(d, layer); ok {
				names = append(names, name)
			}
		}
	}
	return names
}
