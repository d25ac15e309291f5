package auction

import "vaultauction/core/types"

// Storage abstracts the subset of state functionality required by the engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

func (e *Engine) loadAuthority() (*Authority, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	addr := AuthorityAddress(e.config.ProgramID)
	authority := new(Authority)
	ok, err := e.state.KVGet(recordKey(authorityPrefix, addr), authority)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return authority, nil
}

func (e *Engine) storeAuthority(authority *Authority) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(recordKey(authorityPrefix, authority.Address), authority)
}

func (e *Engine) loadSettings(id types.Address) (*Settings, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	settings := new(Settings)
	ok, err := e.state.KVGet(recordKey(settingsPrefix, id), settings)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return settings, nil
}

func (e *Engine) storeSettings(settings *Settings) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(recordKey(settingsPrefix, settings.ID), settings)
}

func (e *Engine) auctionExists(id types.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.KVGet(recordKey(auctionPrefix, id), nil)
}

func (e *Engine) loadAuction(id types.Address) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	auction := new(Auction)
	ok, err := e.state.KVGet(recordKey(auctionPrefix, id), auction)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

func (e *Engine) storeAuction(auction *Auction) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(recordKey(auctionPrefix, auction.ID), auction)
}

func (e *Engine) bidExists(id types.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.KVGet(recordKey(bidPrefix, id), nil)
}

func (e *Engine) loadBid(id types.Address) (*Bid, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	bid := new(Bid)
	ok, err := e.state.KVGet(recordKey(bidPrefix, id), bid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBidNotFound
	}
	return bid, nil
}

func (e *Engine) storeBid(bid *Bid) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(recordKey(bidPrefix, bid.ID), bid)
}

func (e *Engine) deleteBid(id types.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVDelete(recordKey(bidPrefix, id))
}
