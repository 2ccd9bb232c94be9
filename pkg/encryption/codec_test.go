package encryption_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/encryption"
)

var _ = Describe("Codec", func() {
	var codec *encryption.Codec

	BeforeEach(func() {
		codec = encryption.New("test-secret-please-rotate", true)
	})

	Describe("Encrypt", func() {
		DescribeTable("round-trips through TryDecrypt",
			func(plaintext string) {
				sealed, err := codec.Encrypt(plaintext, "user-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(encryption.IsEnvelope(sealed)).To(BeTrue())
				Expect(codec.TryDecrypt(sealed, "user-1")).To(Equal(plaintext))
			},
			Entry("empty", ""),
			Entry("ascii", "I run 3x a week"),
			Entry("unicode", "ça va? 走ります 🏃"),
			Entry("text that looks like an envelope", "enc:v1:not-really"),
			Entry("long", strings.Repeat("marathon ", 4096)),
		)

		It("uses a fresh nonce for every call", func() {
			a, err := codec.Encrypt("same", "user-1")
			Expect(err).NotTo(HaveOccurred())
			b, err := codec.Encrypt("same", "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).NotTo(Equal(b))
		})

		It("fails without a secret", func() {
			_, err := encryption.New("", true).Encrypt("x", "user-1")
			Expect(err).To(MatchError(encryption.ErrNoSecret))
		})

		It("fails without a user", func() {
			_, err := codec.Encrypt("x", "")
			Expect(err).To(MatchError(encryption.ErrNoUser))
		})
	})

	Describe("TryDecrypt", func() {
		DescribeTable("returns non-envelopes unchanged",
			func(value string) {
				Expect(func() { codec.TryDecrypt(value, "user-1") }).NotTo(Panic())
				Expect(codec.TryDecrypt(value, "user-1")).To(Equal(value))
			},
			Entry("empty", ""),
			Entry("legacy plaintext", "I like tea"),
			Entry("bare prefix", "enc:v1:"),
			Entry("bad base64", "enc:v1:@@@@"),
			Entry("too short", "enc:v1:AAAA"),
			Entry("other version", "enc:v2:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"),
			Entry("garbage bytes", "\x00\xff\xfeenc:v1"),
		)

		It("returns the envelope when the user does not match", func() {
			sealed, err := codec.Encrypt("secret fact", "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(codec.TryDecrypt(sealed, "user-2")).To(Equal(sealed))
		})

		It("returns the envelope when the secret differs", func() {
			sealed, err := codec.Encrypt("secret fact", "user-1")
			Expect(err).NotTo(HaveOccurred())
			other := encryption.New("another-secret", true)
			Expect(other.TryDecrypt(sealed, "user-1")).To(Equal(sealed))
		})

		It("returns the envelope when tampered with", func() {
			sealed, err := codec.Encrypt("secret fact", "user-1")
			Expect(err).NotTo(HaveOccurred())
			i := len(encryption.Prefix) + 20
			swap := byte('A')
			if sealed[i] == 'A' {
				swap = 'B'
			}
			tampered := sealed[:i] + string(swap) + sealed[i+1:]
			Expect(codec.TryDecrypt(tampered, "user-1")).To(Equal(tampered))
		})

		It("is a passthrough on a nil or secretless codec", func() {
			var nilCodec *encryption.Codec
			Expect(nilCodec.TryDecrypt("enc:v1:abc", "u")).To(Equal("enc:v1:abc"))
			Expect(encryption.New("", false).TryDecrypt("enc:v1:abc", "u")).To(Equal("enc:v1:abc"))
		})

		It("decrypts even when writes are disabled", func() {
			sealed, err := codec.Encrypt("legacy on", "user-1")
			Expect(err).NotTo(HaveOccurred())
			reader := encryption.New("test-secret-please-rotate", false)
			Expect(reader.Enabled()).To(BeFalse())
			Expect(reader.TryDecrypt(sealed, "user-1")).To(Equal("legacy on"))
		})
	})

	Describe("Seal and Decode", func() {
		It("seals only when enabled with a user", func() {
			v, enc, err := codec.Seal("hello", "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(enc).To(BeTrue())
			Expect(codec.Decode(v, enc, "user-1")).To(Equal("hello"))

			v, enc, err = codec.Seal("hello", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(enc).To(BeFalse())
			Expect(v).To(Equal("hello"))

			v, enc, err = encryption.New("s", false).Seal("hello", "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(enc).To(BeFalse())
			Expect(v).To(Equal("hello"))
		})

		It("does not decrypt rows flagged as plaintext", func() {
			sealed, err := codec.Encrypt("x", "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(codec.Decode(sealed, false, "user-1")).To(Equal(sealed))
		})
	})
})
