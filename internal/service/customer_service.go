package service

import (
	"context"
	"fmt"
	"strings"

	"bodega/internal/dto"
	"bodega/internal/model"
	"bodega/internal/repository"
)

// customerRefs reports how many invoices belong to a customer.
type customerRefs interface {
	CountByCustomer(ctx context.Context, customerID string) (int64, error)
}

type CustomerService interface {
	Create(ctx context.Context, req dto.CreateCustomerRequest) (*model.Customer, error)
	Get(ctx context.Context, id string) (*model.Customer, error)
	List(ctx context.Context, search string, page repository.Page) ([]model.Customer, int64, error)
	Update(ctx context.Context, id string, req dto.UpdateCustomerRequest) (*model.Customer, error)
	// Delete refuses customers that still have invoices.
	Delete(ctx context.Context, id string) error
}

type customerService struct {
	repo        repository.CustomerRepository
	refs        customerRefs
	countryCode string
}

func NewCustomerService(repo repository.CustomerRepository, refs customerRefs, countryCode string) CustomerService {
	return &customerService{repo: repo, refs: refs, countryCode: countryCode}
}

// Identity document kinds accepted as the id prefix.
var customerTypes = map[string]bool{"V": true, "E": true, "J": true, "G": true, "P": true}

// CustomerID builds the "{type}-{number}" key.
func CustomerID(typeCode, number string) string {
	return strings.ToUpper(typeCode) + "-" + number
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePhone drops spaces, dashes and parentheses. Numbers that already
// carry a "+" are kept; anything else gets countryCode, minus a trunk "0".
func NormalizePhone(phone, countryCode string) string {
	phone = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, phone)
	if phone == "" || strings.HasPrefix(phone, "+") || countryCode == "" {
		return phone
	}
	return countryCode + strings.TrimPrefix(phone, "0")
}

func (s *customerService) Create(ctx context.Context, req dto.CreateCustomerRequest) (*model.Customer, error) {
	const op = "CreateCustomer"

	typeCode := strings.ToUpper(strings.TrimSpace(req.TypeCode))
	if !customerTypes[typeCode] {
		return nil, validationErr(op, fmt.Sprintf("unknown document type %q", req.TypeCode))
	}
	number := strings.TrimSpace(req.Number)
	if !isDigits(number) {
		return nil, validationErr(op, "document number must contain digits only")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationErr(op, "name is required")
	}

	id := CustomerID(typeCode, number)
	if _, err := s.repo.FindByID(ctx, id); err == nil {
		return nil, newErr(op, ErrValidation, id, "customer already exists")
	}

	c := &model.Customer{
		ID:      id,
		Name:    name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   NormalizePhone(req.Phone, s.countryCode),
		Address: strings.TrimSpace(req.Address),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, classify(op, id, err)
	}
	return c, nil
}

func (s *customerService) Get(ctx context.Context, id string) (*model.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, classify("GetCustomer", id, err)
	}
	return c, nil
}

func (s *customerService) List(ctx context.Context, search string, page repository.Page) ([]model.Customer, int64, error) {
	out, total, err := s.repo.List(ctx, strings.TrimSpace(search), page)
	if err != nil {
		return nil, 0, classify("ListCustomers", "", err)
	}
	return out, total, nil
}

func (s *customerService) Update(ctx context.Context, id string, req dto.UpdateCustomerRequest) (*model.Customer, error) {
	const op = "UpdateCustomer"
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, classify(op, id, err)
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, newErr(op, ErrValidation, id, "name is required")
		}
		c.Name = name
	}
	if req.Email != nil {
		c.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		c.Phone = NormalizePhone(*req.Phone, s.countryCode)
	}
	if req.Address != nil {
		c.Address = strings.TrimSpace(*req.Address)
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, classify(op, id, err)
	}
	return c, nil
}

func (s *customerService) Delete(ctx context.Context, id string) error {
	const op = "DeleteCustomer"
	if s.refs != nil {
		n, err := s.refs.CountByCustomer(ctx, id)
		if err != nil {
			return classify(op, id, err)
		}
		if n > 0 {
			return newErr(op, ErrValidation, id, fmt.Sprintf("customer has %d invoice(s)", n))
		}
	}
	return classify(op, id, s.repo.Delete(ctx, id))
}
