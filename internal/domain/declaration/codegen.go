package declaration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default code prefixes
const (
	DefaultDeclarationCodePrefix = "KK"
	DefaultPaymentCodePrefix     = "TT"
)

// CodeGenerator produces human-readable codes. Codes are not guaranteed unique;
// callers retry on ErrDuplicateCode.
type CodeGenerator interface {
	DeclarationCode() string
	PaymentCode() string
}

// RandomCodeGenerator builds codes as PREFIX-YYYYMMDD-XXXXXXXX with a random hex suffix
type RandomCodeGenerator struct {
	DeclarationPrefix string
	PaymentPrefix     string
	Now               func() time.Time
}

// NewRandomCodeGenerator creates a generator with the given declaration prefix
func NewRandomCodeGenerator(declarationPrefix string) *RandomCodeGenerator {
	if declarationPrefix == "" {
		declarationPrefix = DefaultDeclarationCodePrefix
	}
	return &RandomCodeGenerator{
		DeclarationPrefix: declarationPrefix,
		PaymentPrefix:     DefaultPaymentCodePrefix,
		Now:               time.Now,
	}
}

// DeclarationCode returns a new declaration code
func (g *RandomCodeGenerator) DeclarationCode() string {
	return g.generate(g.DeclarationPrefix)
}

// PaymentCode returns a new payment code
func (g *RandomCodeGenerator) PaymentCode() string {
	return g.generate(g.PaymentPrefix)
}

func (g *RandomCodeGenerator) generate(prefix string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now().Format("20060102"), suffix)
}
