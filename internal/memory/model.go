package memory

// CartItem is one cart entry. ItemID is the opaque catalog product
// identifier; Quantity is always >= 1 for a persisted entry.
type CartItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Cart is an ordered collection of items, unique by ItemID. Order reflects
// insertion so "the first thing I added" stays meaningful across turns.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Quantity returns the quantity of itemID, or 0 if absent.
func (c Cart) Quantity(itemID string) int {
	for _, it := range c.Items {
		if it.ItemID == itemID {
			return it.Quantity
		}
	}
	return 0
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// add increments the quantity of itemID, appending a new entry when absent.
func (c *Cart) add(itemID string, qty int) {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items[i].Quantity += qty
			return
		}
	}
	c.Items = append(c.Items, CartItem{ItemID: itemID, Quantity: qty})
}

// remove deletes the entry for itemID if present.
func (c *Cart) remove(itemID string) {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// setQuantity sets the quantity of itemID; qty <= 0 removes the entry.
func (c *Cart) setQuantity(itemID string, qty int) {
	if qty <= 0 {
		c.remove(itemID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items[i].Quantity = qty
			return
		}
	}
	c.Items = append(c.Items, CartItem{ItemID: itemID, Quantity: qty})
}

// normalize enforces the quantity invariant after arbitrary mutation.
func (c *Cart) normalize() {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.Quantity >= 1 {
			kept = append(kept, it)
		}
	}
	c.Items = kept
}
