package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/domain"
	"kakeibo/internal/errs"
	"kakeibo/internal/repository"
)

// placeholderEvent stands in when the event label is left blank,
// matching the list/detail pages which always show a label.
const placeholderEvent = "(untitled)"

// ItemInput carries raw form fields for create/update. Validation and
// parsing happen here so handlers stay thin.
type ItemInput struct {
	Event  string
	Amount string
	Type   string
	Date   string
	Memo   string
}

// ItemQuery carries the list filter parameters as the user supplied them.
// Type accepts INCOME, EXPENSE or anything else meaning "all".
type ItemQuery struct {
	Type  string
	Start *time.Time
	End   *time.Time
}

// ItemService coordinates ledger item operations. The userID on every method
// must come from the resolved session, never from client input.
type ItemService interface {
	Create(ctx context.Context, userID int64, in ItemInput) (*domain.Item, error)
	Get(ctx context.Context, userID, id int64) (*domain.Item, error)
	List(ctx context.Context, userID int64, q ItemQuery) ([]domain.Item, domain.Summary, error)
	Update(ctx context.Context, userID, id int64, in ItemInput) (*domain.Item, error)
	Delete(ctx context.Context, userID, id int64) error
}

type itemService struct {
	items repository.ItemRepository
}

func NewItemService(items repository.ItemRepository) ItemService {
	return &itemService{items: items}
}

func (s *itemService) Create(ctx context.Context, userID int64, in ItemInput) (*domain.Item, error) {
	item, err := parseItemInput(in)
	if err != nil {
		return nil, err
	}
	item.UserID = userID

	if _, err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Get(ctx context.Context, userID, id int64) (*domain.Item, error) {
	return s.items.Get(ctx, id, userID)
}

func (s *itemService) List(ctx context.Context, userID int64, q ItemQuery) ([]domain.Item, domain.Summary, error) {
	items, err := s.items.List(ctx, BuildFilter(userID, q))
	if err != nil {
		return nil, domain.Summary{}, err
	}
	return items, Summarize(items), nil
}

// Update is a full replace of the five mutable fields; the ownership check
// happens before anything is written.
func (s *itemService) Update(ctx context.Context, userID, id int64, in ItemInput) (*domain.Item, error) {
	item, err := parseItemInput(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.items.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	item.ID = existing.ID
	item.UserID = existing.UserID
	item.CreatedAt = existing.CreatedAt
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, userID, id int64) error {
	return s.items.Delete(ctx, id, userID)
}

// BuildFilter normalizes user-supplied filter parameters into a repository
// predicate. The end date is inclusive: a raw <= against a date-only value
// would drop same-day timestamps with nonzero time-of-day, so the bound is
// exclusive at the start of the following day.
func BuildFilter(userID int64, q ItemQuery) domain.ItemFilter {
	filter := domain.ItemFilter{UserID: userID}

	switch domain.ItemType(strings.ToUpper(strings.TrimSpace(q.Type))) {
	case domain.ItemTypeIncome:
		filter.Type = domain.ItemTypeIncome
	case domain.ItemTypeExpense:
		filter.Type = domain.ItemTypeExpense
	}

	if q.Start != nil {
		start := startOfDay(*q.Start)
		filter.Start = &start
	}
	if q.End != nil {
		end := startOfDay(*q.End).AddDate(0, 0, 1)
		filter.EndExclusive = &end
	}
	return filter
}

// Summarize totals the filtered list. Balance is income minus expense.
func Summarize(items []domain.Item) domain.Summary {
	var summary domain.Summary
	for _, item := range items {
		switch item.Type {
		case domain.ItemTypeIncome:
			summary.TotalIncome += item.Amount
		case domain.ItemTypeExpense:
			summary.TotalExpense += item.Amount
		}
	}
	summary.Balance = summary.TotalIncome - summary.TotalExpense
	return summary
}

func parseItemInput(in ItemInput) (*domain.Item, error) {
	ve := errs.NewValidationError()

	amountStr := strings.TrimSpace(in.Amount)
	var amount int64
	if amountStr == "" {
		ve.Add("amount", "amount is required")
	} else {
		parsed, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil {
			ve.Add("amount", "amount must be a whole number")
		} else {
			amount = parsed
		}
	}

	itemType := domain.ItemType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if itemType == "" {
		ve.Add("type", "type is required")
	} else if !itemType.Valid() {
		ve.Add("type", "type must be INCOME or EXPENSE")
	}

	date := time.Now()
	if dateStr := strings.TrimSpace(in.Date); dateStr != "" {
		parsed, err := parseDate(dateStr)
		if err != nil {
			ve.Add("date", "date must be a valid date")
		} else {
			date = parsed
		}
	}

	if !ve.Empty() {
		return nil, ve
	}

	event := strings.TrimSpace(in.Event)
	if event == "" {
		event = placeholderEvent
	}

	return &domain.Item{
		Event:  event,
		Amount: amount,
		Type:   itemType,
		Date:   date,
		Memo:   strings.TrimSpace(in.Memo),
	}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: "2006-01-02", Value: value}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
