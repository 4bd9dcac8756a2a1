/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package dbpool

// User mirrors the single table the engine's login/register flow reads
// from and writes to.
type User struct {
	Username string `gorm:"column:username;primaryKey"`
	Password string `gorm:"column:password"`
}

func (User) TableName() string { return "user" }

// VerifyUser implements the engine's login/register contract: empty name or
// password always fails. On login, success requires a matching stored
// password. On register, success requires the username be unused, after
// which the row is inserted. Every lookup is parameterized.
func VerifyUser(p *Pool, name, pwd string, isLogin bool) (bool, error) {
	if name == "" || pwd == "" {
		return false, nil
	}

	l, err := Acquire(p)
	if err != nil {
		return false, err
	}
	defer l.Release()

	var u User
	err = l.DB().Where("username = ?", name).Limit(1).Find(&u).Error
	if err != nil {
		return false, err
	}
	found := u.Username != ""

	if isLogin {
		return found && u.Password == pwd, nil
	}

	if found {
		return false, nil
	}

	if err = l.DB().Create(&User{Username: name, Password: pwd}).Error; err != nil {
		return false, err
	}
	return true, nil
}
