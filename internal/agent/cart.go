package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopmate-ai/shopmate/internal/memory"
)

// CartResult is the outcome of a cart operation, complete before the reply
// is composed so the assistant always speaks about the post-mutation state.
type CartResult struct {
	Cart        memory.Cart
	Description string // grounding text for the reply prompt

	Mutated   bool
	Operation Intent
	ItemID    string
	Quantity  int

	// Set when the item reference matched several products; no mutation
	// happened and Description asks the user to pick one.
	NeedsClarification bool
	Candidates         []string
}

// CartAgent resolves item references and applies cart operations through the
// session store.
type CartAgent struct {
	store  memory.Store
	logger *slog.Logger
}

// NewCartAgent creates a cart agent over the given session store.
func NewCartAgent(store memory.Store, logger *slog.Logger) *CartAgent {
	return &CartAgent{store: store, logger: logger}
}

// Name implements Agent.
func (a *CartAgent) Name() string { return "cart" }

// Apply executes the planned cart operation for the turn. Ambiguous
// references return a clarification result instead of an error; every other
// failure propagates.
func (a *CartAgent) Apply(ctx context.Context, turn *Turn, plan Plan) (CartResult, error) {
	switch plan.Intent {
	case IntentCartView:
		cart, err := a.store.GetCart(ctx, turn.UserID)
		if err != nil {
			return CartResult{}, fmt.Errorf("load cart: %w", err)
		}
		return CartResult{Cart: cart, Operation: plan.Intent, Description: describeCart(cart, turn.Retrieved)}, nil

	case IntentCartClear:
		if err := a.store.ClearCart(ctx, turn.UserID); err != nil {
			return CartResult{}, fmt.Errorf("clear cart: %w", err)
		}
		return CartResult{
			Operation:   plan.Intent,
			Mutated:     !turn.Cart.IsEmpty(),
			Description: "The cart was emptied.",
		}, nil

	case IntentCartAdd, IntentCartRemove, IntentCartUpdateQty:
		return a.applyItemOp(ctx, turn, plan)

	default:
		return CartResult{}, fmt.Errorf("cart agent received non-cart intent %q", plan.Intent)
	}
}

func (a *CartAgent) applyItemOp(ctx context.Context, turn *Turn, plan Plan) (CartResult, error) {
	itemID, name, err := resolveReference(plan.ItemRef, turn.Retrieved, turn.Cart)
	if err != nil {
		var amb *AmbiguousReferenceError
		if errors.As(err, &amb) {
			return CartResult{
				Operation:          plan.Intent,
				NeedsClarification: true,
				Candidates:         amb.Candidates,
				Cart:               turn.Cart,
				Description: fmt.Sprintf("The reference %q matches several products (%s). Ask the user which one they mean before changing the cart.",
					plan.ItemRef, strings.Join(amb.Candidates, ", ")),
			}, nil
		}
		var unresolved *UnresolvedReferenceError
		if errors.As(err, &unresolved) {
			return CartResult{
				Operation: plan.Intent,
				Cart:      turn.Cart,
				Description: fmt.Sprintf("No product matching %q was found among the shown products or the cart. Tell the user it could not be identified.",
					plan.ItemRef),
			}, nil
		}
		return CartResult{}, err
	}

	// Quantity zero on an update means remove.
	intent := plan.Intent
	if intent == IntentCartUpdateQty && plan.Quantity <= 0 {
		intent = IntentCartRemove
	}

	var cart memory.Cart
	qty := plan.Quantity
	switch intent {
	case IntentCartAdd:
		if qty < 1 {
			qty = 1
		}
		cart, err = a.store.AddToCart(ctx, turn.UserID, itemID, qty)
	case IntentCartRemove:
		cart, err = a.store.RemoveFromCart(ctx, turn.UserID, itemID)
	case IntentCartUpdateQty:
		cart, err = a.store.UpdateQuantity(ctx, turn.UserID, itemID, qty)
	}
	if err != nil {
		return CartResult{}, fmt.Errorf("apply %s: %w", intent, err)
	}

	return CartResult{
		Cart:        cart,
		Operation:   intent,
		Mutated:     true,
		ItemID:      itemID,
		Quantity:    qty,
		Description: describeMutation(intent, name, itemID, qty, cart, turn.Retrieved),
	}, nil
}

// ordinalWords is scanned in order; the earliest-listed word present in the
// reference wins, so a reference naming two ordinals resolves the same way
// every time.
var ordinalWords = []struct {
	word string
	pos  int
}{
	{"first", 1}, {"second", 2}, {"third", 3}, {"fourth", 4}, {"fifth", 5},
	{"sixth", 6}, {"seventh", 7}, {"eighth", 8}, {"ninth", 9}, {"tenth", 10},
	{"1st", 1}, {"2nd", 2}, {"3rd", 3}, {"4th", 4}, {"5th", 5},
	{"last", -1},
}

var ordinalNumber = regexp.MustCompile(`(?:item|number|option|#)\s*(\d+)`)

// resolveReference maps a user item reference onto a product id. Resolution
// order: exact product id, case-insensitive substring over the names of the
// products shown this session, ordinal position within them. Cart item ids
// are checked last so "remove X" works when nothing was shown this session.
func resolveReference(ref string, retrieved RetrievedSet, cart memory.Cart) (id, name string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", &UnresolvedReferenceError{Ref: ref}
	}
	lower := strings.ToLower(ref)

	for _, it := range retrieved.Items {
		if strings.EqualFold(it.ID, ref) {
			return it.ID, it.Name, nil
		}
	}
	for _, ci := range cart.Items {
		if strings.EqualFold(ci.ItemID, ref) {
			return ci.ItemID, displayName(ci.ItemID), nil
		}
	}

	var matches []RetrievedItem
	for _, it := range retrieved.Items {
		if strings.Contains(strings.ToLower(it.Name), lower) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0].ID, matches[0].Name, nil
	default:
		if len(matches) > 1 {
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.Name
			}
			return "", "", &AmbiguousReferenceError{Ref: ref, Candidates: names}
		}
	}

	if pos, ok := parseOrdinal(lower); ok && !retrieved.IsEmpty() {
		if pos == -1 {
			pos = len(retrieved.Items)
		}
		if pos >= 1 && pos <= len(retrieved.Items) {
			it := retrieved.Items[pos-1]
			return it.ID, it.Name, nil
		}
	}

	// Fall back to the cart itself for references like "the polka dot dress"
	// when the session carries no retrieved products.
	var cartMatches []string
	for _, ci := range cart.Items {
		if strings.Contains(strings.ToLower(displayName(ci.ItemID)), lower) {
			cartMatches = append(cartMatches, ci.ItemID)
		}
	}
	switch len(cartMatches) {
	case 1:
		return cartMatches[0], displayName(cartMatches[0]), nil
	case 0:
		return "", "", &UnresolvedReferenceError{Ref: ref}
	default:
		names := make([]string, len(cartMatches))
		for i, id := range cartMatches {
			names[i] = displayName(id)
		}
		return "", "", &AmbiguousReferenceError{Ref: ref, Candidates: names}
	}
}

func parseOrdinal(lower string) (int, bool) {
	for _, w := range ordinalWords {
		if strings.Contains(lower, w.word) {
			return w.pos, true
		}
	}
	if m := ordinalNumber.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// displayName renders a slug-style product id for user-facing text.
func displayName(itemID string) string {
	return strings.ReplaceAll(itemID, "_", " ")
}

func describeMutation(intent Intent, name, itemID string, qty int, cart memory.Cart, retrieved RetrievedSet) string {
	if name == "" {
		name = displayName(itemID)
	}
	var action string
	switch intent {
	case IntentCartAdd:
		action = fmt.Sprintf("Added %d x %s to the cart.", qty, name)
	case IntentCartRemove:
		action = fmt.Sprintf("Removed %s from the cart.", name)
	case IntentCartUpdateQty:
		action = fmt.Sprintf("Set the quantity of %s to %d.", name, qty)
	}
	return action + " " + describeCart(cart, retrieved)
}

// describeCart renders the cart for the reply prompt, preferring the display
// names of products shown this session over raw item ids.
func describeCart(cart memory.Cart, retrieved RetrievedSet) string {
	if cart.IsEmpty() {
		return "The cart is now empty."
	}
	names := make(map[string]string, len(retrieved.Items))
	for _, it := range retrieved.Items {
		names[it.ID] = it.Name
	}
	var b strings.Builder
	b.WriteString("The cart now contains:")
	for _, ci := range cart.Items {
		name, ok := names[ci.ItemID]
		if !ok {
			name = displayName(ci.ItemID)
		}
		fmt.Fprintf(&b, "\n- %d x %s", ci.Quantity, name)
	}
	return b.String()
}
