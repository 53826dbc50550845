package common

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

var supportedNetworks = map[Network]struct{}{
	NetworkMainnet: {},
	NetworkTestnet: {},
}

// Address head-byte prefixes per network. The address type byte is added on
// top of the prefix when an address is encoded.
var addressPrefixes = map[Network]byte{
	NetworkMainnet: 0x00,
	NetworkTestnet: 0x10,
}

func (n Network) IsSupported() bool {
	_, ok := supportedNetworks[n]
	return ok
}

func (n Network) AddressPrefix() byte {
	return addressPrefixes[n]
}

func (n Network) String() string {
	return string(n)
}
