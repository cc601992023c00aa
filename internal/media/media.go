// Package media turns stored image references into delivery URLs.
package media

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
)

// Resolver maps product image references to URLs. Absolute URLs pass through;
// anything else is treated as a Cloudinary public id when a Cloudinary account is configured.
type Resolver struct {
	cld *cloudinary.Cloudinary
}

var errInvalidURL = errors.New("CLOUDINARY_URL must look like cloudinary://<api_key>:<api_secret>@<cloud_name>")

// NewResolver builds a Resolver from a CLOUDINARY_URL. An empty url yields a pass-through resolver.
func NewResolver(cloudinaryURL string) (*Resolver, error) {
	if cloudinaryURL == "" {
		return &Resolver{}, nil
	}
	u, err := url.Parse(cloudinaryURL)
	if err != nil || u.Scheme != "cloudinary" {
		return nil, errInvalidURL
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	if cld.Config.Cloud.CloudName == "" {
		return nil, errInvalidURL
	}
	cld.Config.URL.Secure = true
	return &Resolver{cld: cld}, nil
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "//")
}

// URL returns the delivery URL for ref. Resolution failures fall back to ref unchanged.
func (r *Resolver) URL(ref string) string {
	if r == nil || r.cld == nil || ref == "" || isAbsolute(ref) {
		return ref
	}
	img, err := r.cld.Image(ref)
	if err != nil {
		return ref
	}
	u, err := img.String()
	if err != nil {
		return ref
	}
	return u
}
