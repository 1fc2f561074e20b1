package faker

import (
	"fmt"

	goFaker "github.com/go-faker/faker/v4"
)

// invokeTag calls faker.FakeData against a one-field holder struct whose
// tag is the literal faker tag name. Struct tags are compile-time literals
// in Go, so each tag gets its own tiny holder type and this function
// dispatches to it by name rather than building a struct dynamically.
func invokeTag(tag string) (string, error) {
	switch tag {
	case "name":
		var h struct {
			V string `faker:"name"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "first_name":
		var h struct {
			V string `faker:"first_name"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "last_name":
		var h struct {
			V string `faker:"last_name"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "email":
		var h struct {
			V string `faker:"email"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "username":
		var h struct {
			V string `faker:"username"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "ipv4":
		var h struct {
			V string `faker:"ipv4"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "domain_name":
		var h struct {
			V string `faker:"domain_name"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "url":
		var h struct {
			V string `faker:"url"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "phone_number":
		var h struct {
			V string `faker:"phone_number"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "uuid_hyphenated":
		return goFaker.UUIDHyphenated(), nil
	case "cc_number":
		var h struct {
			V string `faker:"cc_number"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "currency":
		var h struct {
			V string `faker:"currency"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "word":
		var h struct {
			V string `faker:"word"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "sentence":
		var h struct {
			V string `faker:"sentence"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "day_of_week":
		var h struct {
			V string `faker:"day_of_week"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "month_name":
		var h struct {
			V string `faker:"month_name"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	case "timezone":
		var h struct {
			V string `faker:"timezone"`
		}
		if err := goFaker.FakeData(&h); err != nil {
			return "", err
		}
		return h.V, nil
	default:
		return "", fmt.Errorf("faker: unhandled tag %q", tag)
	}
}
