package vault

import (
	"encoding/json"
	"fmt"
	"math/big"

	"synthvault/crypto"
	"synthvault/storage"
)

var positionPrefix = []byte("vault/position/")

// Store persists positions as JSON rows in a key-value database so the
// engine survives restarts. Amounts are serialized as decimal strings to
// keep arbitrary precision intact.
type Store struct {
	db storage.Database
}

// NewStore wraps the database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

type storedPosition struct {
	Address    string            `json:"address"`
	Collateral map[string]string `json:"collateral"`
	Debt       string            `json:"debt"`
}

func positionKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), positionPrefix...), addr.String()...)
}

// PutPosition writes the position row for the account.
func (s *Store) PutPosition(p *Position) error {
	if s == nil || s.db == nil {
		return nil
	}
	if p == nil {
		return fmt.Errorf("vault store: nil position")
	}
	row := storedPosition{
		Address:    p.Address.String(),
		Collateral: make(map[string]string, len(p.Collateral)),
		Debt:       "0",
	}
	for kind, amount := range p.Collateral {
		if amount != nil && amount.Sign() > 0 {
			row.Collateral[kind] = amount.String()
		}
	}
	if p.Debt != nil {
		row.Debt = p.Debt.String()
	}
	encoded, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("vault store: encode position: %w", err)
	}
	return s.db.Put(positionKey(p.Address), encoded)
}

// LoadPositions reads every persisted position.
func (s *Store) LoadPositions() ([]*Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var positions []*Position
	err := s.db.Iterate(positionPrefix, func(key, value []byte) error {
		var row storedPosition
		if err := json.Unmarshal(value, &row); err != nil {
			return fmt.Errorf("vault store: decode %s: %w", key, err)
		}
		addr, err := crypto.DecodeAddress(row.Address)
		if err != nil {
			return fmt.Errorf("vault store: decode address %s: %w", row.Address, err)
		}
		position := &Position{
			Address:    addr,
			Collateral: make(map[string]*big.Int, len(row.Collateral)),
			Debt:       big.NewInt(0),
		}
		for kind, amount := range row.Collateral {
			parsed, ok := new(big.Int).SetString(amount, 10)
			if !ok {
				return fmt.Errorf("vault store: malformed collateral amount %q for %s", amount, row.Address)
			}
			position.Collateral[kind] = parsed
		}
		if row.Debt != "" {
			parsed, ok := new(big.Int).SetString(row.Debt, 10)
			if !ok {
				return fmt.Errorf("vault store: malformed debt %q for %s", row.Debt, row.Address)
			}
			position.Debt = parsed
		}
		positions = append(positions, position)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}
