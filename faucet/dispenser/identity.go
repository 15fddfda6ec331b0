package dispenser

import "github.com/fuellabs/go-faucet/chain"

// Identity is the rate limit key of a dispense. One deployment may mix the
// two flavors: recipient addresses for the proof of work flow and external
// user ids for the authenticated flow. The namespace prefix keeps them from
// colliding.
type Identity string

// AddressIdentity keys the tracker by recipient address.
func AddressIdentity(a chain.Address) Identity {
	return Identity("addr:" + a.Hex())
}

// UserIdentity keys the tracker by an external user id.
func UserIdentity(userID string) Identity {
	return Identity("user:" + userID)
}
