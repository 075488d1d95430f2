package reactor

import "github.com/arcwire/reactor/api"

// fdRegistration is the reactor's own record of a live selector
// registration, kept so the selector-rebuild workaround can recreate
// every key on a fresh selector without depending on the selector
// backend to expose its own key set.
type fdRegistration struct {
	fd       uintptr
	interest api.ReadyOp
	userData any
}

// RegisterFD registers fd with this reactor's selector and records the
// registration for rebuild purposes. Transports call this (instead of
// touching the Selector directly) so rebuilds stay transparent to them.
func (r *Reactor) RegisterFD(fd uintptr, interest api.ReadyOp, userData any) (*api.SelectionKey, error) {
	key, err := r.selector.Register(fd, interest, userData)
	if err != nil {
		return nil, err
	}
	r.regMu.Lock()
	r.registrations[fd] = fdRegistration{fd: fd, interest: interest, userData: userData}
	r.regMu.Unlock()
	return key, nil
}

// ModifyFD updates a registration's interest set. It returns
// ErrNotRegistered if fd is not currently tracked by this reactor (e.g.
// it was already deregistered or cancelled).
func (r *Reactor) ModifyFD(key *api.SelectionKey, interest api.ReadyOp) error {
	r.regMu.Lock()
	_, ok := r.registrations[key.FD]
	r.regMu.Unlock()
	if !ok {
		return api.ErrNotRegistered
	}
	if err := r.selector.Modify(key, interest); err != nil {
		return err
	}
	r.regMu.Lock()
	if reg, ok := r.registrations[key.FD]; ok {
		reg.interest = interest
		r.registrations[key.FD] = reg
	}
	r.regMu.Unlock()
	return nil
}

// CancelFD removes fd's registration from both the selector and the
// reactor's own rebuild registry. Already-cancelled keys are discarded
// rather than erroring (spec §4.1).
func (r *Reactor) CancelFD(key *api.SelectionKey) error {
	err := r.selector.Cancel(key)
	r.regMu.Lock()
	delete(r.registrations, key.FD)
	r.regMu.Unlock()
	return err
}

// rebuildSelector is the reactor's response to the classic epoll
// 100%-CPU defect (spec §4.1): it creates a fresh selector and
// re-registers every live key, discarding any that were already
// cancelled, without pausing user tasks for longer than one loop
// iteration.
func (r *Reactor) rebuildSelector() {
	fresh, err := newPlatformSelector()
	if err != nil {
		log.Error().Err(err).Msg("selector rebuild failed, keeping existing selector")
		return
	}
	old := r.selector

	r.regMu.Lock()
	regs := make([]fdRegistration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		regs = append(regs, reg)
	}
	r.regMu.Unlock()

	for _, reg := range regs {
		if _, err := fresh.Register(reg.fd, reg.interest, reg.userData); err != nil {
			log.Warn().Uint64("fd", uint64(reg.fd)).Err(err).Msg("dropping fd during selector rebuild")
			r.regMu.Lock()
			delete(r.registrations, reg.fd)
			r.regMu.Unlock()
		}
	}

	r.selector = fresh
	old.Close()
	log.Warn().Int("keys", len(regs)).Msg("selector rebuilt")
}
