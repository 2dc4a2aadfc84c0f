package utils

import "crypto/rand"

const referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 6

// GenerateReferralCode returns a random uppercase alphanumeric code.
// Uniqueness is enforced by the database index; collisions are retried by
// the caller.
func GenerateReferralCode() (string, error) {
	buf := make([]byte, ReferralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return string(buf), nil
}
