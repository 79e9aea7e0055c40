package workflow

// Services bundles every workflow over one set of collaborators.
type Services struct {
	Transfers  *Transfers
	Returns    *Returns
	Edits      *Edits
	Dispatcher *Dispatcher
	Assets     *Assets
	Users      *Users
	Checks     *Checks
	Stats      *Stats
}

func NewServices(d Deps) *Services {
	transfers := NewTransfers(d)
	returns := NewReturns(d)
	edits := NewEdits(d)
	return &Services{
		Transfers:  transfers,
		Returns:    returns,
		Edits:      edits,
		Dispatcher: NewDispatcher(transfers, returns, edits),
		Assets:     NewAssets(d),
		Users:      NewUsers(d),
		Checks:     NewChecks(d),
		Stats:      NewStats(d),
	}
}
