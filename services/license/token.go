package license

import (
	"crypto/rsa"
	"time"

	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/keys"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/fx"
)

// Claims is the enforcement payload embedded in a license token. Every
// entitlement decision reads these values, never a fresh database row; the
// token is the capability.
type Claims struct {
	TenantID            string           `json:"tenant_id"`
	MaxApps             int64            `json:"max_apps"`
	MaxExecutionsPer24h int64            `json:"max_executions_per_24h"`
	ValidFrom           *jwt.NumericDate `json:"valid_from"`
	ValidTo             *jwt.NumericDate `json:"valid_to"`
	Status              LicenseStatus    `json:"status"`
}

// Codec signs and verifies license tokens with an RS256 keypair.
type Codec struct {
	signer jose.Signer
	public *rsa.PublicKey
	ttl    time.Duration
}

type CodecParams struct {
	fx.In
	Keys   *keys.Pair
	Config *config.Config
}

func NewCodec(p CodecParams) (*Codec, error) {
	return newCodec(p.Keys, p.Config.License.TokenTTL)
}

func newCodec(pair *keys.Pair, ttl time.Duration) (*Codec, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: pair.Private},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, err
	}

	return &Codec{
		signer: signer,
		public: pair.Public,
		ttl:    ttl,
	}, nil
}

// Encode builds the claims bundle from the license record and returns the
// signed compact serialization. Pure apart from signing.
func (c *Codec) Encode(lic *License, now time.Time) (string, error) {
	std := jwt.Claims{
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(c.ttl)),
	}

	custom := Claims{
		TenantID:            lic.TenantID,
		MaxApps:             lic.MaxApps,
		MaxExecutionsPer24h: lic.MaxExecutionsPer24h,
		ValidFrom:           jwt.NewNumericDate(lic.ValidFrom),
		ValidTo:             jwt.NewNumericDate(lic.ValidTo),
		Status:              lic.Status,
	}

	return jwt.Signed(c.signer).Claims(std).Claims(custom).Serialize()
}

// Decode verifies the token signature and cryptographic expiry, then checks
// the embedded license state against now. It never touches a store and is
// safe to repeat on every request.
func (c *Codec) Decode(token string, now time.Time) (*Claims, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, errutil.Unauthorized("invalid token", errutil.WithErr(err))
	}

	var std jwt.Claims
	var out Claims
	if err := parsed.Claims(c.public, &std, &out); err != nil {
		return nil, errutil.Unauthorized("invalid token", errutil.WithErr(err))
	}

	if err := std.ValidateWithLeeway(jwt.Expected{Time: now}, jwt.DefaultLeeway); err != nil {
		return nil, errutil.Unauthorized("invalid token", errutil.WithErr(err))
	}

	if out.TenantID == "" || out.ValidFrom == nil || out.ValidTo == nil {
		return nil, errutil.Unauthorized("invalid token")
	}

	if out.Status != StatusActive {
		return nil, errutil.Forbidden("license not active")
	}

	// License validity window, distinct from the token's own expiry above.
	if now.Before(out.ValidFrom.Time()) || now.After(out.ValidTo.Time()) {
		return nil, errutil.Forbidden("license expired or not yet valid")
	}

	return &out, nil
}
