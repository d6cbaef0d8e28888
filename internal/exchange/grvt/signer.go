package grvt

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
)

// Signer 对订单做 secp256k1 签名（GRVT 要求每笔订单带链下签名）。
// 私钥在构造时解析一次，之后签名不再接触原始十六进制串。
type Signer struct {
	key    *ecdsa.PrivateKey
	signer string // 签名地址（hex）
}

// NewSigner 从十六进制私钥构造签名器
func NewSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("grvt: 私钥为空")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("grvt: 解析私钥失败: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &Signer{key: key, signer: addr.Hex()}, nil
}

// Address 签名地址
func (s *Signer) Address() string {
	return s.signer
}

// SignOrder 对订单关键字段做 keccak256 后签名，返回 (r, s, v, nonce, expiry)。
// 字段编码顺序必须与交易所校验端一致：instrument | side | size | price | nonce | expiry。
func (s *Signer) SignOrder(instrument string, side domain.Side, size, price decimal.Decimal, nonce uint32) (orderSignature, error) {
	expiry := time.Now().Add(10 * time.Minute).UnixNano()

	var nonceBuf [4]byte
	binary.BigEndian.PutUint32(nonceBuf[:], nonce)
	var expiryBuf [8]byte
	binary.BigEndian.PutUint64(expiryBuf[:], uint64(expiry))

	sideByte := byte(0)
	if side == domain.SideBuy {
		sideByte = 1
	}

	hash := crypto.Keccak256(
		[]byte(instrument),
		[]byte{sideByte},
		[]byte(size.String()),
		[]byte(price.String()),
		nonceBuf[:],
		expiryBuf[:],
	)

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return orderSignature{}, fmt.Errorf("grvt: 订单签名失败: %w", err)
	}

	r := new(big.Int).SetBytes(sig[:32])
	ss := new(big.Int).SetBytes(sig[32:64])
	v := int(sig[64]) + 27

	return orderSignature{
		Signer:   s.signer,
		R:        hexutil.EncodeBig(r),
		S:        hexutil.EncodeBig(ss),
		V:        v,
		ExpiryNs: expiry,
		Nonce:    nonce,
	}, nil
}
