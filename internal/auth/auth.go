package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"microblog/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// KeyPair 持有进程级别的 RSA 签名密钥，启动时加载一次，运行期间不轮换。
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

type Claims struct {
	UserID   uint   `json:"userID"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// LoadKeyPair 解析 Base64 DER 形式的密钥对（即 PEM 去掉头尾和换行后的正文），
// 私钥为 PKCS#8，公钥为 PKIX。
func LoadKeyPair(privB64, pubB64 string) (*KeyPair, error) {
	privDER, err := base64.StdEncoding.DecodeString(normalizeKey(privB64))
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(privDER)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	pubDER, err := base64.StdEncoding.DecodeString(normalizeKey(pubB64))
	if err != nil {
		return nil, err
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// GenerateKeyPair 生成临时密钥对，仅用于 dev 环境未配置密钥时的兜底。
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// normalizeKey 容忍带 PEM 头尾的输入：去掉头尾行和全部空白，只留 Base64 正文。
func normalizeKey(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, "-----") {
			continue
		}
		for _, r := range line {
			if r == ' ' || r == '\t' || r == '\r' {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SignToken 用 RS256 签发携带 userID 和 username 声明的 token。
func SignToken(kp *KeyPair, userID uint, username string, ttlMinutes int) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(kp.Private)
}

func ParseToken(kp *KeyPair, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return kp.Public, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// VerifyToken 只回答签名是否有效：任何解析或校验错误都记日志并返回 false，
// 不向调用方抛出。
func VerifyToken(kp *KeyPair, tokenStr string) bool {
	if _, err := ParseToken(kp, tokenStr); err != nil {
		log.Warn().Err(err).Msg("token verify")
		return false
	}
	return true
}

// AuthMiddleware 校验 Bearer Token 并把对应用户注入请求上下文。
func AuthMiddleware(kp *KeyPair, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := ParseToken(kp, tokenStr)
		if err != nil {
			log.Warn().Err(err).Msg("token verify")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}
